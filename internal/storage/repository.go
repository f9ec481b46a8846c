package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	findBalancesSQL = `SELECT
        token_address,
        maker_address,
        balance,
        time_first_seen,
        time_of_sample
    FROM maker_balances
    WHERE token_address = $1
      AND maker_address = ANY($2);`

	registerMakersSQL = `INSERT INTO maker_balances (
        token_address,
        maker_address,
        time_first_seen
    )
    SELECT $1, unnest($2::text[]), $3
    ON CONFLICT (token_address, maker_address) DO NOTHING;`

	listPairsForSamplingSQL = `SELECT
        token_address,
        maker_address
    FROM maker_balances
    ORDER BY time_of_sample ASC NULLS FIRST, time_first_seen ASC NULLS FIRST
    LIMIT $1;`

	updateSampledBalanceSQL = `UPDATE maker_balances
    SET balance = $3, time_of_sample = $4
    WHERE token_address = $1
      AND maker_address = $2;`

	listRecentRecordsSQL = `SELECT
        token_address,
        maker_address,
        balance,
        time_first_seen,
        time_of_sample
    FROM maker_balances
    ORDER BY time_of_sample DESC NULLS LAST, time_first_seen DESC NULLS LAST
    LIMIT $1;`

	staleCountsSQL = `SELECT
        COUNT(*),
        COUNT(*) FILTER (WHERE time_of_sample IS NULL),
        COUNT(*) FILTER (WHERE time_of_sample IS NOT NULL AND time_of_sample < $1)
    FROM maker_balances;`

	countRecordsSQL = `SELECT COUNT(*) FROM maker_balances;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// BalanceCache defines the operations the validator needs: a keyed read of
// cached balances and the conflict-free registration of unseen pairs.
type BalanceCache interface {
	FindBalances(ctx context.Context, token common.Address, makers []common.Address) ([]BalanceRecord, error)
	RegisterMakers(ctx context.Context, token common.Address, makers []common.Address, firstSeen time.Time) error
}

// SampleStore defines the producer-side operations used by the sampler.
type SampleStore interface {
	ListPairsForSampling(ctx context.Context, limit int) ([]TrackedPair, error)
	UpdateSampledBalance(ctx context.Context, pair TrackedPair, balance decimal.Decimal, sampledAt time.Time) error
	StaleCounts(ctx context.Context, olderThan time.Time) (StalenessStats, error)
}

// RecordLister exposes inspection reads for the show/export commands.
type RecordLister interface {
	ListRecentRecords(ctx context.Context, limit int) ([]BalanceRecord, error)
	CountRecords(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the maker balance cache.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Addresses are keyed as lowercase hex so that differently-cased callers race
// onto the same row.
func addressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func addressKeys(addrs []common.Address) []string {
	keys := make([]string, len(addrs))
	for i, addr := range addrs {
		keys[i] = addressKey(addr)
	}
	return keys
}

// FindBalances fetches cache rows for the given token and maker set. Fewer
// rows than makers means the missing pairs have never been registered.
func (s *Store) FindBalances(ctx context.Context, token common.Address, makers []common.Address) ([]BalanceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if len(makers) == 0 {
		return nil, nil
	}

	rows, queryErr := pool.Query(ctx, findBalancesSQL, addressKey(token), addressKeys(makers))
	if queryErr != nil {
		return nil, fmt.Errorf("find balances: %w", queryErr)
	}
	defer rows.Close()

	records := make([]BalanceRecord, 0, len(makers))
	for rows.Next() {
		record, scanErr := scanBalanceRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// RegisterMakers inserts one unsampled row per maker with the supplied
// first-seen timestamp. Pairs that already exist are left untouched, so
// concurrent identical registrations succeed as no-ops.
func (s *Store) RegisterMakers(ctx context.Context, token common.Address, makers []common.Address, firstSeen time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(makers) == 0 {
		return nil
	}

	if _, execErr := pool.Exec(ctx, registerMakersSQL, addressKey(token), addressKeys(makers), firstSeen); execErr != nil {
		return fmt.Errorf("register makers: %w", execErr)
	}
	return nil
}

// ListPairsForSampling returns up to limit pairs ordered so that never-sampled
// and least-recently-sampled entries come first.
func (s *Store) ListPairsForSampling(ctx context.Context, limit int) ([]TrackedPair, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPairsForSamplingSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list pairs for sampling: %w", queryErr)
	}
	defer rows.Close()

	pairs := make([]TrackedPair, 0, limit)
	for rows.Next() {
		var tokenStr, makerStr string
		if err := rows.Scan(&tokenStr, &makerStr); err != nil {
			return nil, err
		}
		pairs = append(pairs, TrackedPair{
			TokenAddress: common.HexToAddress(tokenStr),
			MakerAddress: common.HexToAddress(makerStr),
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return pairs, nil
}

// UpdateSampledBalance writes a freshly sampled balance onto an existing row.
func (s *Store) UpdateSampledBalance(ctx context.Context, pair TrackedPair, balance decimal.Decimal, sampledAt time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, updateSampledBalanceSQL,
		addressKey(pair.TokenAddress),
		addressKey(pair.MakerAddress),
		balance.String(),
		sampledAt,
	)
	if execErr != nil {
		return fmt.Errorf("update sampled balance: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// StaleCounts reports how many rows are tracked, unsampled, and sampled
// before the given cutoff.
func (s *Store) StaleCounts(ctx context.Context, olderThan time.Time) (StalenessStats, error) {
	pool, err := s.getPool()
	if err != nil {
		return StalenessStats{}, err
	}

	var stats StalenessStats
	if scanErr := pool.QueryRow(ctx, staleCountsSQL, olderThan).Scan(&stats.Total, &stats.Unsampled, &stats.Stale); scanErr != nil {
		return StalenessStats{}, fmt.Errorf("stale counts: %w", scanErr)
	}
	return stats, nil
}

// ListRecentRecords lists cache rows ordered by most recent sample first.
func (s *Store) ListRecentRecords(ctx context.Context, limit int) ([]BalanceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRecordsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent records: %w", queryErr)
	}
	defer rows.Close()

	records := make([]BalanceRecord, 0, limit)
	for rows.Next() {
		record, scanErr := scanBalanceRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// CountRecords counts tracked pairs.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRecordsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count records: %w", scanErr)
	}
	return count, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func scanBalanceRecord(rows pgx.Rows) (BalanceRecord, error) {
	var (
		tokenStr   string
		makerStr   string
		balanceStr sql.NullString
		firstSeen  sql.NullTime
		sampledAt  sql.NullTime
	)

	if err := rows.Scan(&tokenStr, &makerStr, &balanceStr, &firstSeen, &sampledAt); err != nil {
		return BalanceRecord{}, err
	}

	record := BalanceRecord{
		TokenAddress: common.HexToAddress(tokenStr),
		MakerAddress: common.HexToAddress(makerStr),
	}

	if balanceStr.Valid {
		balance, err := decimal.NewFromString(balanceStr.String)
		if err != nil {
			return BalanceRecord{}, fmt.Errorf("parse balance: %w", err)
		}
		record.Balance = &balance
	}
	if firstSeen.Valid {
		value := firstSeen.Time
		record.TimeFirstSeen = &value
	}
	if sampledAt.Valid {
		value := sampledAt.Time
		record.TimeOfSample = &value
	}

	return record, nil
}

var _ BalanceCache = (*Store)(nil)
var _ SampleStore = (*Store)(nil)
var _ RecordLister = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
