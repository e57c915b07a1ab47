package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"stream-anomaly-alerts/internal/storage"
)

// Show prints recent samples, or only the anomalous ones.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show samples")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var samples []storage.StreamSample
	if opts.Anomalies {
		samples, err = store.ListRecentAnomalies(ctx, opts.Limit)
	} else {
		samples, err = store.ListRecentSamples(ctx, opts.Limit)
	}
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Index\tValue\tMean\tStdDev\tZ-score\tAnomaly\tTime (UTC)")

	for _, sample := range samples {
		fmt.Fprintf(
			writer,
			"%d\t%.2f\t%s\t%s\t%s\t%t\t%s\n",
			sample.TimeIndex,
			sample.Value,
			formatScore(sample.Mean),
			formatScore(sample.StdDev),
			formatScore(sample.ZScore),
			sample.IsAnomaly,
			sample.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}

// formatScore renders a nullable score; during the detector fill phase the
// column shows n/a.
func formatScore(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
