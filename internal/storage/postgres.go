package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stream-anomaly-alerts/internal/config"
)

const (
	createSamplesTableSQL = `CREATE TABLE IF NOT EXISTS stream_samples (
        time_index BIGINT PRIMARY KEY,
        elapsed_sec DOUBLE PRECISION NOT NULL,
        value DOUBLE PRECISION NOT NULL,
        mean DOUBLE PRECISION,
        std_dev DOUBLE PRECISION,
        z_score DOUBLE PRECISION,
        is_anomaly BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS idx_stream_samples_anomaly
        ON stream_samples (time_index) WHERE is_anomaly;`

	upsertSampleSQL = `INSERT INTO stream_samples (
        time_index,
        elapsed_sec,
        value,
        mean,
        std_dev,
        z_score,
        is_anomaly,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (time_index) DO UPDATE
    SET
        elapsed_sec = EXCLUDED.elapsed_sec,
        value       = EXCLUDED.value,
        mean        = EXCLUDED.mean,
        std_dev     = EXCLUDED.std_dev,
        z_score     = EXCLUDED.z_score,
        is_anomaly  = EXCLUDED.is_anomaly;`

	sampleColumnsSQL = `time_index, elapsed_sec, value, mean, std_dev, z_score, is_anomaly, created_at`

	listRecentSamplesSQL = `SELECT ` + sampleColumnsSQL + `
    FROM stream_samples
    ORDER BY time_index DESC
    LIMIT $1;`

	listRecentAnomaliesSQL = `SELECT ` + sampleColumnsSQL + `
    FROM stream_samples
    WHERE is_anomaly
    ORDER BY time_index DESC
    LIMIT $1;`

	listSamplesBetweenSQL = `SELECT ` + sampleColumnsSQL + `
    FROM stream_samples
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY time_index;`

	countSamplesSQL = `SELECT COUNT(*) FROM stream_samples;`
)

// PostgresStore persists samples through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres configures a PostgreSQL-backed store from runtime settings.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required for the postgres driver")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Init creates the schema when missing.
func (s *PostgresStore) Init(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createSamplesTableSQL); execErr != nil {
		return fmt.Errorf("create schema: %w", execErr)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertSample persists or updates one observation.
func (s *PostgresStore) UpsertSample(ctx context.Context, sample StreamSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertSampleSQL,
		sample.TimeIndex,
		sample.Elapsed,
		sample.Value,
		sample.Mean,
		sample.StdDev,
		sample.ZScore,
		sample.IsAnomaly,
		sample.CreatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert sample: %w", execErr)
	}
	return nil
}

// ListRecentSamples lists the most recent samples ordered by descending index.
func (s *PostgresStore) ListRecentSamples(ctx context.Context, limit int) ([]StreamSample, error) {
	return s.listSamples(ctx, listRecentSamplesSQL, limit)
}

// ListRecentAnomalies lists the most recent anomalous samples.
func (s *PostgresStore) ListRecentAnomalies(ctx context.Context, limit int) ([]StreamSample, error) {
	return s.listSamples(ctx, listRecentAnomaliesSQL, limit)
}

func (s *PostgresStore) listSamples(ctx context.Context, query string, limit int) ([]StreamSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]StreamSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListSamplesBetween lists samples within a creation-time window.
func (s *PostgresStore) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]StreamSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]StreamSample, 0)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountSamples counts stored samples.
func (s *PostgresStore) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

func scanSample(rows pgx.Rows) (StreamSample, error) {
	var (
		sample    StreamSample
		mean      sql.NullFloat64
		stdDev    sql.NullFloat64
		zScore    sql.NullFloat64
		createdAt time.Time
	)

	if err := rows.Scan(
		&sample.TimeIndex,
		&sample.Elapsed,
		&sample.Value,
		&mean,
		&stdDev,
		&zScore,
		&sample.IsAnomaly,
		&createdAt,
	); err != nil {
		return StreamSample{}, err
	}

	sample.CreatedAt = createdAt
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

	return sample, nil
}

var _ SampleStore = (*PostgresStore)(nil)
