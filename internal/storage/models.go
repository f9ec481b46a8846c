package storage

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// BalanceRecord is one cached observation of a maker's holdings of a token.
// Balance and TimeOfSample stay nil until the sampler has visited the pair;
// TimeFirstSeen is set when the pair is registered.
type BalanceRecord struct {
	TokenAddress  common.Address
	MakerAddress  common.Address
	Balance       *decimal.Decimal
	TimeFirstSeen *time.Time
	TimeOfSample  *time.Time
}

// TrackedPair identifies one (token, maker) cache entry.
type TrackedPair struct {
	TokenAddress common.Address
	MakerAddress common.Address
}

// StalenessStats summarises cache health for alerting.
type StalenessStats struct {
	Total     int64
	Unsampled int64
	Stale     int64
}
