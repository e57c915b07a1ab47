package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists samples in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the SQLite database at dsn.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:streamwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Init creates the schema when missing.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stream_samples (
			time_index INTEGER PRIMARY KEY,
			elapsed_sec REAL NOT NULL,
			value REAL NOT NULL,
			mean REAL,
			std_dev REAL,
			z_score REAL,
			is_anomaly INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stream_samples_anomaly ON stream_samples(is_anomaly, time_index)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

// UpsertSample persists or updates one observation.
func (s *SQLiteStore) UpsertSample(ctx context.Context, sample StreamSample) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stream_samples (time_index, elapsed_sec, value, mean, std_dev, z_score, is_anomaly, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (time_index) DO UPDATE SET
			elapsed_sec = excluded.elapsed_sec,
			value = excluded.value,
			mean = excluded.mean,
			std_dev = excluded.std_dev,
			z_score = excluded.z_score,
			is_anomaly = excluded.is_anomaly`,
		sample.TimeIndex,
		sample.Elapsed,
		sample.Value,
		nullable(sample.Mean),
		nullable(sample.StdDev),
		nullable(sample.ZScore),
		boolToInt(sample.IsAnomaly),
		sample.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert sample: %w", err)
	}
	return nil
}

// ListRecentSamples lists the most recent samples ordered by descending index.
func (s *SQLiteStore) ListRecentSamples(ctx context.Context, limit int) ([]StreamSample, error) {
	return s.listSamples(ctx,
		`SELECT time_index, elapsed_sec, value, mean, std_dev, z_score, is_anomaly, created_at
		FROM stream_samples ORDER BY time_index DESC LIMIT ?`, limit)
}

// ListRecentAnomalies lists the most recent anomalous samples.
func (s *SQLiteStore) ListRecentAnomalies(ctx context.Context, limit int) ([]StreamSample, error) {
	return s.listSamples(ctx,
		`SELECT time_index, elapsed_sec, value, mean, std_dev, z_score, is_anomaly, created_at
		FROM stream_samples WHERE is_anomaly = 1 ORDER BY time_index DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) listSamples(ctx context.Context, query string, limit int) ([]StreamSample, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()
	return collectSampleRows(rows)
}

// ListSamplesBetween lists samples within a creation-time window.
func (s *SQLiteStore) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]StreamSample, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT time_index, elapsed_sec, value, mean, std_dev, z_score, is_anomaly, created_at
		FROM stream_samples WHERE created_at >= ? AND created_at < ? ORDER BY time_index`,
		from.UTC().Format(time.RFC3339Nano),
		to.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list samples between: %w", err)
	}
	defer rows.Close()
	return collectSampleRows(rows)
}

// CountSamples counts stored samples.
func (s *SQLiteStore) CountSamples(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotConfigured
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stream_samples`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

func collectSampleRows(rows *sql.Rows) ([]StreamSample, error) {
	samples := make([]StreamSample, 0)
	for rows.Next() {
		var (
			sample    StreamSample
			mean      sql.NullFloat64
			stdDev    sql.NullFloat64
			zScore    sql.NullFloat64
			isAnomaly int
			createdAt string
		)
		if err := rows.Scan(
			&sample.TimeIndex,
			&sample.Elapsed,
			&sample.Value,
			&mean,
			&stdDev,
			&zScore,
			&isAnomaly,
			&createdAt,
		); err != nil {
			return nil, err
		}
		if mean.Valid {
			v := mean.Float64
			sample.Mean = &v
		}
		if stdDev.Valid {
			v := stdDev.Float64
			sample.StdDev = &v
		}
		if zScore.Valid {
			v := zScore.Float64
			sample.ZScore = &v
		}
		sample.IsAnomaly = isAnomaly != 0
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		sample.CreatedAt = ts
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ SampleStore = (*SQLiteStore)(nil)
