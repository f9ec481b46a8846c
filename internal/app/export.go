package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"maker-fill-validator/internal/storage"
)

// Export dumps cache contents as CSV and/or renders a PNG bar chart of the
// largest sampled balances.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxRows = a.Config.ResolveMaxRows(opts.MaxRows)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListRecentRecords(ctx, opts.MaxRows)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Msg("no cache rows found for export")
		return nil
	}

	a.Logger.Info().Int("rows", len(records)).Msg("exporting cache rows")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, records); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeBalancesPNG(opts.PNGPath, records, a.Config.Export.TopN); err != nil {
			return err
		}
	}

	return nil
}

func writeRecordsCSV(path string, records []storage.BalanceRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"token_address", "maker_address", "balance", "time_first_seen", "time_of_sample"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, record := range records {
		row := []string{
			record.TokenAddress.Hex(),
			record.MakerAddress.Hex(),
			formatBalance(record),
			formatTimestamp(record.TimeFirstSeen),
			formatTimestamp(record.TimeOfSample),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeBalancesPNG(path string, records []storage.BalanceRecord, topN int) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	sampled := make([]storage.BalanceRecord, 0, len(records))
	for _, record := range records {
		if record.Balance != nil {
			sampled = append(sampled, record)
		}
	}
	if len(sampled) == 0 {
		return errors.New("no sampled balances to chart")
	}

	sort.SliceStable(sampled, func(i, j int) bool {
		return sampled[i].Balance.GreaterThan(*sampled[j].Balance)
	})
	if topN > 0 && len(sampled) > topN {
		sampled = sampled[:topN]
	}

	bars := make([]chart.Value, 0, len(sampled))
	for _, record := range sampled {
		bars = append(bars, chart.Value{
			Label: shortAddress(record.MakerAddress.Hex()),
			Value: record.Balance.InexactFloat64(),
		})
	}

	graph := chart.BarChart{
		Title:    "Top cached maker balances (" + time.Now().UTC().Format(time.RFC3339) + ")",
		Width:    1280,
		Height:   720,
		BarWidth: 40,
		Bars:     bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func shortAddress(hex string) string {
	if len(hex) <= 12 {
		return hex
	}
	return hex[:8] + ".." + hex[len(hex)-4:]
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
