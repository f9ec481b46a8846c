package fetcher

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestChainMissingConfig(t *testing.T) {
	c := NewChain(ChainOptions{}, noopLogger())
	if _, err := c.FetchBalance(context.Background(), common.Address{}, common.Address{}); err == nil {
		t.Fatal("expected error when rpc url not configured")
	}
}
