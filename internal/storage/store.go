package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stream-anomaly-alerts/internal/config"
)

// ErrNotConfigured indicates the store was not initialised.
var ErrNotConfigured = errors.New("storage: not configured")

// SampleStore defines operations for stream sample persistence.
type SampleStore interface {
	Init(ctx context.Context) error
	UpsertSample(ctx context.Context, sample StreamSample) error
	ListRecentSamples(ctx context.Context, limit int) ([]StreamSample, error)
	ListRecentAnomalies(ctx context.Context, limit int) ([]StreamSample, error)
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]StreamSample, error)
	CountSamples(ctx context.Context) (int64, error)
	Close()
}

// NewStore selects a backend by driver name. An empty driver disables
// persistence and returns a nil store.
func NewStore(ctx context.Context, cfg config.DatabaseConfig) (SampleStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "":
		return nil, nil
	case "postgres", "postgresql":
		return NewPostgres(ctx, cfg)
	case "sqlite":
		return NewSQLite(cfg.DSN)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}
