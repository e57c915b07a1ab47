package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stream-anomaly-alerts/internal/alerting"
	"stream-anomaly-alerts/internal/cache"
	"stream-anomaly-alerts/internal/config"
	"stream-anomaly-alerts/internal/detector"
	"stream-anomaly-alerts/internal/metrics"
	"stream-anomaly-alerts/internal/storage"
	"stream-anomaly-alerts/internal/stream"
)

// Publisher receives every processed sample for live consumers.
type Publisher interface {
	Publish(sample storage.StreamSample)
}

// Summary aggregates counters for one completed run.
type Summary struct {
	Points    int64
	Scored    int64
	Anomalies int64
}

// Service drives the stream: one point per tick is pulled, scored, and
// fanned out before the next point is pulled. History is append-only and
// mutated only between ticks.
type Service struct {
	source   stream.Source
	detector *detector.Detector
	store    storage.SampleStore
	cache    *cache.Client
	notifier alerting.Notifier
	cooldown *alerting.Cooldown
	hub      Publisher
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	alertsOn       bool
	cooldownWindow time.Duration
	channels       []string
	now            func() time.Time

	mu        sync.RWMutex
	history   []storage.StreamSample
	anomalies []storage.StreamSample
	summary   Summary
}

// New constructs the monitoring service. Store, cache, notifier, hub, and
// metrics are all optional.
func New(cfg *config.Config, source stream.Source, det *detector.Detector, store storage.SampleStore, cacheClient *cache.Client, notifier alerting.Notifier, hub Publisher, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		source:         source,
		detector:       det,
		store:          store,
		cache:          cacheClient,
		notifier:       notifier,
		cooldown:       alerting.NewCooldown(),
		hub:            hub,
		metrics:        m,
		logger:         logger.With().Str("component", "service").Logger(),
		alertsOn:       cfg.Alerting.Enabled,
		cooldownWindow: cfg.Alerting.Cooldown,
		channels:       cfg.Alerting.Channels,
		now:            time.Now,
	}
}

// UseClock derives sample timestamps from the stream clock instead of the
// wall clock, so replayed runs persist simulated time.
func (s *Service) UseClock(clock stream.Clock) {
	s.now = clock.Now
}

// Run pulls points until the stream ends or ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	for {
		point, err := s.source.Next(ctx)
		if errors.Is(err, stream.ErrStreamEnded) {
			summary := s.RunSummary()
			s.logger.Info().
				Int64("points", summary.Points).
				Int64("scored", summary.Scored).
				Int64("anomalies", summary.Anomalies).
				Msg("stream ended")
			return nil
		}
		if err != nil {
			return err
		}
		s.processPoint(ctx, point)
	}
}

func (s *Service) processPoint(ctx context.Context, point stream.Point) {
	result, scored := s.detector.Observe(point.Index, point.Value)
	sample := storage.NewSample(point, result, scored, s.now().UTC())

	s.record(sample, scored)

	if s.metrics != nil {
		s.metrics.PointsGenerated.Inc()
		if scored {
			s.metrics.PointsScored.Inc()
			s.metrics.LastZScore.Set(result.ZScore)
			if result.IsAnomaly {
				s.metrics.Anomalies.Inc()
			}
		}
	}

	if s.store != nil {
		if err := s.store.UpsertSample(ctx, sample); err != nil {
			s.logger.Error().Err(err).Int64("time_index", point.Index).Msg("failed to persist sample")
		}
	}

	if s.cache != nil && scored {
		if err := s.cache.SaveLatest(ctx, result); err != nil {
			s.logger.Error().Err(err).Int64("time_index", point.Index).Msg("failed to cache latest result")
		}
	}

	if s.hub != nil {
		s.hub.Publish(sample)
	}

	switch {
	case !scored:
		s.logger.Debug().Int64("time_index", point.Index).
			Float64("value", point.Value).
			Msg("collecting data")
	case result.IsAnomaly:
		s.logger.Info().Int64("time_index", point.Index).
			Float64("value", point.Value).
			Float64("z_score", result.ZScore).
			Msg("anomaly detected")
		s.dispatchAlert(ctx, result)
	default:
		s.logger.Debug().Int64("time_index", point.Index).
			Float64("value", point.Value).
			Float64("z_score", result.ZScore).
			Msg("point scored")
	}
}

func (s *Service) record(sample storage.StreamSample, scored bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, sample)
	s.summary.Points++
	if scored {
		s.summary.Scored++
	}
	if sample.IsAnomaly {
		s.anomalies = append(s.anomalies, sample)
		s.summary.Anomalies++
	}
}

func (s *Service) dispatchAlert(ctx context.Context, result detector.Result) {
	if !s.alertsOn || s.notifier == nil {
		return
	}
	if !s.cooldown.Allow(s.cooldownWindow) {
		s.logger.Debug().Int64("time_index", result.TimeIndex).Msg("alert suppressed by cooldown")
		return
	}

	note := alerting.FromResult(result, s.detector.Threshold(), s.channels, s.now().UTC())
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Int64("time_index", result.TimeIndex).Msg("failed to dispatch alert")
	}
}

// RecentSamples returns up to limit samples, newest first.
func (s *Service) RecentSamples(limit int) []storage.StreamSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tailReversed(s.history, limit)
}

// RecentAnomalies returns up to limit anomalous samples, newest first.
func (s *Service) RecentAnomalies(limit int) []storage.StreamSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tailReversed(s.anomalies, limit)
}

// RunSummary returns the counters accumulated so far.
func (s *Service) RunSummary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

func tailReversed(samples []storage.StreamSample, limit int) []storage.StreamSample {
	if limit <= 0 || limit > len(samples) {
		limit = len(samples)
	}
	out := make([]storage.StreamSample, 0, limit)
	for i := len(samples) - 1; i >= len(samples)-limit; i-- {
		out = append(out, samples[i])
	}
	return out
}
