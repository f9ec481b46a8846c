package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"maker-fill-validator/internal/validator"
)

type quoteEntry struct {
	Maker            string `json:"maker"`
	MakerAsset       string `json:"makerAsset"`
	MakerAssetAmount string `json:"makerAssetAmount"`
	TakerAssetAmount string `json:"takerAssetAmount"`
}

// Check validates a JSON file of quotes against the balance cache and prints
// the fillable taker amount per quote.
func (a *App) Check(ctx context.Context, opts CheckOptions) error {
	quotes, err := loadQuotes(opts.QuotesPath)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot check quotes")
	}
	if closeStore != nil {
		defer closeStore()
	}

	v := validator.New(store, a.Config.Validator.StalenessThreshold, a.Logger)
	amounts, err := v.ComputeFillableAmounts(ctx, quotes)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Maker\tMaker Amount\tTaker Amount\tFillable")
	for i, quote := range quotes {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			quote.MakerAddress.Hex(),
			quote.MakerAssetAmount.String(),
			quote.TakerAssetAmount.String(),
			amounts[i].String(),
		)
	}
	return writer.Flush()
}

func loadQuotes(path string) ([]validator.Quote, error) {
	if path == "" {
		return nil, errors.New("--quotes must be provided")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quotes file: %w", err)
	}

	var entries []quoteEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse quotes file: %w", err)
	}

	quotes := make([]validator.Quote, 0, len(entries))
	for i, entry := range entries {
		quote, err := entry.toQuote()
		if err != nil {
			return nil, fmt.Errorf("quote %d: %w", i, err)
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

func (e quoteEntry) toQuote() (validator.Quote, error) {
	if !common.IsHexAddress(e.Maker) {
		return validator.Quote{}, fmt.Errorf("invalid maker address %q", e.Maker)
	}
	if !common.IsHexAddress(e.MakerAsset) {
		return validator.Quote{}, fmt.Errorf("invalid maker asset address %q", e.MakerAsset)
	}

	makerAmount, err := decimal.NewFromString(e.MakerAssetAmount)
	if err != nil {
		return validator.Quote{}, fmt.Errorf("parse maker asset amount: %w", err)
	}
	takerAmount, err := decimal.NewFromString(e.TakerAssetAmount)
	if err != nil {
		return validator.Quote{}, fmt.Errorf("parse taker asset amount: %w", err)
	}
	if makerAmount.Sign() < 0 || takerAmount.Sign() < 0 {
		return validator.Quote{}, errors.New("amounts cannot be negative")
	}

	return validator.Quote{
		MakerAddress:      common.HexToAddress(e.Maker),
		MakerAssetAddress: common.HexToAddress(e.MakerAsset),
		MakerAssetAmount:  makerAmount,
		TakerAssetAmount:  takerAmount,
	}, nil
}
