package app

import (
	"context"
	"time"

	"stream-anomaly-alerts/internal/service"
	"stream-anomaly-alerts/internal/storage"
	"stream-anomaly-alerts/internal/stream"
)

// Replay runs the full pipeline under the simulated clock: the whole stream
// is generated and scored without wall-clock waits. Useful for backtesting
// detector settings and for seeding storage with a complete run.
func (a *App) Replay(ctx context.Context, opts ReplayOptions) error {
	cfg := *a.Config
	if opts.Duration > 0 {
		cfg.Stream.Duration = opts.Duration
	}
	if opts.Interval > 0 {
		cfg.Stream.Interval = opts.Interval
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var store storage.SampleStore
	if opts.DryRun {
		a.Logger.Warn().Msg("replay dry-run: storage writes disabled")
	} else {
		s, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		store = s
		if closeStore != nil {
			defer closeStore()
		}
	}

	clock := stream.NewSimulatedClock(time.Now().UTC())
	generator, err := stream.NewGenerator(stream.Options{
		Duration: cfg.Stream.Duration,
		Interval: cfg.Stream.Interval,
		Signal:   cfg.Stream.Signal,
		Seed:     cfg.Stream.Seed,
		Clock:    clock,
	}, a.Logger)
	if err != nil {
		return err
	}

	det, err := a.newDetector()
	if err != nil {
		return err
	}

	svc := service.New(&cfg, generator, det, store, nil, nil, nil, nil, a.Logger)
	svc.UseClock(clock)
	if err := svc.Run(ctx); err != nil {
		return err
	}

	summary := svc.RunSummary()
	a.Logger.Info().
		Int64("points", summary.Points).
		Int64("scored", summary.Scored).
		Int64("anomalies", summary.Anomalies).
		Msg("replay complete")
	return nil
}
