package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"maker-fill-validator/internal/storage"
)

// Show prints recent cache rows.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show cache rows")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListRecentRecords(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no cache rows found")
		return nil
	}

	now := time.Now().UTC()
	threshold := a.Config.Validator.StalenessThreshold

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Token\tMaker\tBalance\tFirst Seen (UTC)\tSampled (UTC)\tState")

	for _, record := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			record.TokenAddress.Hex(),
			record.MakerAddress.Hex(),
			formatBalance(record),
			formatTimestamp(record.TimeFirstSeen),
			formatTimestamp(record.TimeOfSample),
			recordState(record, now, threshold),
		)
	}

	return writer.Flush()
}

func formatBalance(record storage.BalanceRecord) string {
	if record.Balance == nil {
		return "-"
	}
	return record.Balance.String()
}

func formatTimestamp(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}

func recordState(record storage.BalanceRecord, now time.Time, threshold time.Duration) string {
	if record.TimeOfSample == nil {
		if record.TimeFirstSeen == nil || now.Sub(*record.TimeFirstSeen) > threshold {
			return "unsampled-stale"
		}
		return "unsampled"
	}
	if now.Sub(*record.TimeOfSample) > threshold {
		return "stale"
	}
	return "fresh"
}
