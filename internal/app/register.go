package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Register manually seeds (token, maker) pairs into the cache for sampling.
// Existing pairs are left untouched, same as the validator's registration.
func (a *App) Register(ctx context.Context, opts RegisterOptions) error {
	if !common.IsHexAddress(opts.Token) {
		return fmt.Errorf("invalid token address %q", opts.Token)
	}
	if len(opts.Makers) == 0 {
		return errors.New("at least one --maker must be provided")
	}

	makers := make([]common.Address, 0, len(opts.Makers))
	for _, maker := range opts.Makers {
		if !common.IsHexAddress(maker) {
			return fmt.Errorf("invalid maker address %q", maker)
		}
		makers = append(makers, common.HexToAddress(maker))
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot register pairs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if err := store.RegisterMakers(ctx, common.HexToAddress(opts.Token), makers, time.Now().UTC()); err != nil {
		return err
	}

	a.Logger.Info().
		Str("token", common.HexToAddress(opts.Token).Hex()).
		Int("makers", len(makers)).
		Msg("pairs registered for sampling")
	return nil
}
