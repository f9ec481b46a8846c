// Package validator computes, per quote in a batch, the maximum amount a
// taker can actually fill given the maker's cached on-chain balance.
package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"maker-fill-validator/internal/storage"
)

// Quote is a proposed trade offer. All quotes in one batch must share the
// same maker asset; amounts are base units, never mutated here.
type Quote struct {
	MakerAddress      common.Address
	MakerAssetAddress common.Address
	MakerAssetAmount  decimal.Decimal
	TakerAssetAmount  decimal.Decimal
}

// Validator checks quote batches against the maker balance cache.
type Validator struct {
	store     storage.BalanceCache
	threshold time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs a Validator. The staleness threshold bounds how old a
// balance sample (or an unsampled registration) may be before it is
// distrusted.
func New(store storage.BalanceCache, threshold time.Duration, logger zerolog.Logger) *Validator {
	return &Validator{
		store:     store,
		threshold: threshold,
		logger:    logger.With().Str("component", "validator").Logger(),
		now:       time.Now,
	}
}

// ComputeFillableAmounts returns one fillable taker amount per quote, in
// input order. A batch mixing maker assets is denied outright (all zeros).
// Makers with no cache row are granted their full taker amount and
// registered for sampling; registration failures are logged, not returned.
// Only a failed cache read surfaces as an error.
func (v *Validator) ComputeFillableAmounts(ctx context.Context, quotes []Quote) ([]decimal.Decimal, error) {
	if len(quotes) == 0 {
		return []decimal.Decimal{}, nil
	}

	token, ok := singleMakerAsset(quotes)
	if !ok {
		v.logger.Error().
			Strs("maker_asset_addresses", distinctAssetHex(quotes)).
			Msg("batch mixes maker assets; denying all quotes")
		return zeroAmounts(len(quotes)), nil
	}

	makers := distinctMakers(quotes)
	records, err := v.store.FindBalances(ctx, token, makers)
	if err != nil {
		return nil, fmt.Errorf("read balance cache: %w", err)
	}

	// One timestamp for the whole batch so every record gets the same
	// staleness judgment.
	now := v.now().UTC()

	effective := make(map[common.Address]effectiveBalance, len(records))
	for _, record := range records {
		effective[record.MakerAddress] = v.classify(record, now)
	}

	amounts := make([]decimal.Decimal, len(quotes))
	unseen := make([]common.Address, 0)
	unseenSet := make(map[common.Address]struct{})
	for i, quote := range quotes {
		balance, known := effective[quote.MakerAddress]
		if !known {
			// Never observed at all: fail open and let the sampler catch up.
			amounts[i] = quote.TakerAssetAmount
			if _, dup := unseenSet[quote.MakerAddress]; !dup {
				unseenSet[quote.MakerAddress] = struct{}{}
				unseen = append(unseen, quote.MakerAddress)
			}
			continue
		}
		amounts[i] = v.fillable(quote, balance)
	}

	if len(unseen) > 0 {
		if err := v.store.RegisterMakers(ctx, token, unseen, now); err != nil {
			v.logger.Error().Err(err).
				Str("token", token.Hex()).
				Int("makers", len(unseen)).
				Msg("failed to register unseen makers for sampling")
		}
	}

	return amounts, nil
}

// classify converts a cache row into an effective balance per the staleness
// policy: unsampled rows fail open while young and closed once the sampler
// looks stuck; sampled rows are trusted only within the threshold.
func (v *Validator) classify(record storage.BalanceRecord, now time.Time) effectiveBalance {
	if record.TimeOfSample == nil {
		var firstSeen time.Time // unset first-seen counts as maximally stale
		if record.TimeFirstSeen != nil {
			firstSeen = *record.TimeFirstSeen
		}
		if now.Sub(firstSeen) > v.threshold {
			v.logger.Warn().
				Str("maker", record.MakerAddress.Hex()).
				Time("first_seen", firstSeen).
				Msg("pair registered but never sampled within threshold; treating balance as zero")
			return knownBalance(decimal.Zero)
		}
		return unconstrainedBalance()
	}

	if now.Sub(*record.TimeOfSample) > v.threshold {
		v.logger.Warn().
			Str("maker", record.MakerAddress.Hex()).
			Time("sampled_at", *record.TimeOfSample).
			Msg("balance sample exceeds staleness threshold; treating balance as zero")
		return knownBalance(decimal.Zero)
	}

	if record.Balance == nil {
		v.logger.Error().
			Str("maker", record.MakerAddress.Hex()).
			Time("sampled_at", *record.TimeOfSample).
			Msg("cache row has a sample timestamp but no balance; treating balance as zero")
		return knownBalance(decimal.Zero)
	}

	return knownBalance(*record.Balance)
}

func (v *Validator) fillable(quote Quote, balance effectiveBalance) decimal.Decimal {
	if quote.MakerAssetAmount.Sign() <= 0 {
		return decimal.Zero
	}
	if balance.covers(quote.MakerAssetAmount) {
		return quote.TakerAssetAmount
	}
	if balance.unconstrained {
		// covers() treats unconstrained as sufficient for any maker amount,
		// so reaching the pro-rata path with it means the branching above is
		// inconsistent. Deny rather than fabricate an amount.
		v.logger.Error().
			Str("maker", quote.MakerAddress.Hex()).
			Msg("unconstrained balance reached pro-rata arithmetic; returning zero")
		return decimal.Zero
	}
	return proRataFloor(balance.amount, quote.TakerAssetAmount, quote.MakerAssetAmount)
}

// singleMakerAsset returns the batch's maker asset if exactly one is present.
func singleMakerAsset(quotes []Quote) (common.Address, bool) {
	token := quotes[0].MakerAssetAddress
	for _, quote := range quotes[1:] {
		if quote.MakerAssetAddress != token {
			return common.Address{}, false
		}
	}
	return token, true
}

func distinctAssetHex(quotes []Quote) []string {
	seen := make(map[common.Address]struct{}, len(quotes))
	hex := make([]string, 0, len(quotes))
	for _, quote := range quotes {
		if _, ok := seen[quote.MakerAssetAddress]; ok {
			continue
		}
		seen[quote.MakerAssetAddress] = struct{}{}
		hex = append(hex, quote.MakerAssetAddress.Hex())
	}
	return hex
}

func distinctMakers(quotes []Quote) []common.Address {
	seen := make(map[common.Address]struct{}, len(quotes))
	makers := make([]common.Address, 0, len(quotes))
	for _, quote := range quotes {
		if _, ok := seen[quote.MakerAddress]; ok {
			continue
		}
		seen[quote.MakerAddress] = struct{}{}
		makers = append(makers, quote.MakerAddress)
	}
	return makers
}

func zeroAmounts(n int) []decimal.Decimal {
	amounts := make([]decimal.Decimal, n)
	for i := range amounts {
		amounts[i] = decimal.Zero
	}
	return amounts
}
