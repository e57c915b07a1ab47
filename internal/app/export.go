package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"stream-anomaly-alerts/internal/storage"
)

// Export renders historical data as CSV and/or a PNG chart of the stream
// with anomalies marked.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

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

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Stream.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.StreamSample, max int) []storage.StreamSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}
	// The step interpolation below needs at least two slots.
	if max == 1 {
		return samples[len(samples)-1:]
	}

	result := make([]storage.StreamSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.StreamSample) error {
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

	header := []string{"time_index", "elapsed_sec", "value", "mean", "std_dev", "z_score", "is_anomaly", "created_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		record := []string{
			formatInt(sample.TimeIndex),
			formatFloat(sample.Elapsed),
			formatFloat(sample.Value),
			formatNullable(sample.Mean),
			formatNullable(sample.StdDev),
			formatNullable(sample.ZScore),
			formatBool(sample.IsAnomaly),
			sample.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path string, samples []storage.StreamSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, len(samples))
	values := make([]float64, len(samples))
	means := make([]float64, 0, len(samples))
	meanX := make([]float64, 0, len(samples))
	anomalyX := make([]float64, 0)
	anomalyY := make([]float64, 0)

	for i, sample := range samples {
		x[i] = float64(sample.TimeIndex)
		values[i] = sample.Value
		if sample.Mean != nil {
			meanX = append(meanX, float64(sample.TimeIndex))
			means = append(means, *sample.Mean)
		}
		if sample.IsAnomaly {
			anomalyX = append(anomalyX, float64(sample.TimeIndex))
			anomalyY = append(anomalyY, sample.Value)
		}
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Stream",
			XValues: x,
			YValues: values,
		},
	}
	if len(means) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name:    "Rolling mean",
			XValues: meanX,
			YValues: means,
			Style: chart.Style{
				StrokeColor:     chart.ColorAlternateGray,
				StrokeDashArray: []float64{4.0, 4.0},
			},
		})
	}
	if len(anomalyX) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name:    "Anomalies",
			XValues: anomalyX,
			YValues: anomalyY,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    5,
				DotColor:    chart.ColorRed,
			},
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "Time index",
		},
		YAxis: chart.YAxis{
			Name: "Value",
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
