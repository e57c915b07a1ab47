package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"stream-anomaly-alerts/internal/alerting"
	"stream-anomaly-alerts/internal/api"
	"stream-anomaly-alerts/internal/cache"
	"stream-anomaly-alerts/internal/config"
	"stream-anomaly-alerts/internal/detector"
	"stream-anomaly-alerts/internal/metrics"
	"stream-anomaly-alerts/internal/service"
	"stream-anomaly-alerts/internal/storage"
	"stream-anomaly-alerts/internal/stream"
	"stream-anomaly-alerts/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newGenerator(clock stream.Clock) (*stream.Generator, error) {
	return stream.NewGenerator(stream.Options{
		Duration: a.Config.Stream.Duration,
		Interval: a.Config.Stream.Interval,
		Signal:   a.Config.Stream.Signal,
		Seed:     a.Config.Stream.Seed,
		Clock:    clock,
	}, a.Logger)
}

func (a *App) newDetector() (*detector.Detector, error) {
	return detector.New(a.Config.Detector.WindowSize, a.Config.Detector.Threshold)
}

func (a *App) openStore(ctx context.Context) (storage.SampleStore, func(), error) {
	store, err := storage.NewStore(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, nil
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

// newNotifier assembles the configured alert channels. The returned closer
// flushes channels that buffer, such as Kafka.
func (a *App) newNotifier() (alerting.Notifier, func(), error) {
	if !a.Config.Alerting.Enabled {
		return nil, nil, nil
	}

	var fanout alerting.Fanout
	var closers []func()

	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		fanout = append(fanout, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	if a.Config.Alerting.Kafka.Enabled {
		cfg := a.Config.Alerting.Kafka
		kafkaNotifier := alerting.NewKafkaNotifier(cfg.Brokers, cfg.Topic, a.Logger)
		fanout = append(fanout, kafkaNotifier)
		closers = append(closers, func() { _ = kafkaNotifier.Close() })
	}

	if len(fanout) == 0 {
		return nil, nil, nil
	}

	closer := func() {
		for _, c := range closers {
			c()
		}
	}
	return fanout, closer, nil
}

func (a *App) newCache(ctx context.Context) (*cache.Client, error) {
	if !a.Config.Redis.Enabled {
		return nil, nil
	}
	return cache.New(ctx, a.Config.Redis, a.Logger)
}

// Run executes the live monitoring pipeline until the stream duration
// elapses or a shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.driver not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cacheClient, err := a.newCache(ctx)
	if err != nil {
		return err
	}
	if cacheClient != nil {
		defer cacheClient.Close()
	}

	notifier, closeNotifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if closeNotifier != nil {
		defer closeNotifier()
	}

	generator, err := a.newGenerator(stream.SystemClock())
	if err != nil {
		return err
	}
	det, err := a.newDetector()
	if err != nil {
		return err
	}

	m := metrics.New()

	var hub *api.Hub
	var publisher service.Publisher
	if a.Config.API.Enabled {
		hub = api.NewHub(a.Config.API.LiveBuffer)
		publisher = hub
	}

	svc := service.New(a.Config, generator, det, store, cacheClient, notifier, publisher, m, a.Logger)

	if a.Config.API.Enabled {
		server := api.NewServer(a.Config.API, svc, hub, m.Registry, a.Logger, version.Version)
		server.Start(ctx)
	}

	a.Logger.Info().
		Dur("duration", a.Config.Stream.Duration).
		Dur("interval", a.Config.Stream.Interval).
		Int("window_size", a.Config.Detector.WindowSize).
		Float64("threshold", a.Config.Detector.Threshold).
		Msg("starting monitoring service")

	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit     int
	Anomalies bool
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ReplayOptions configure the offline replay run.
type ReplayOptions struct {
	Duration time.Duration
	Interval time.Duration
	DryRun   bool
}

// SimulateOptions describe a synthetic anomaly for the alert path.
type SimulateOptions struct {
	Value  float64
	Mean   float64
	StdDev float64
}
