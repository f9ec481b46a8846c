package fetcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// BalanceFetcher reads a maker's current holdings of a token, in base units.
type BalanceFetcher interface {
	FetchBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error)
}
