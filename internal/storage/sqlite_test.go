package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLite(dsn)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return store
}

func scoredSample(index int64, value, z float64, anomaly bool, at time.Time) StreamSample {
	mean := 10.0
	stdDev := 2.0
	return StreamSample{
		TimeIndex: index,
		Elapsed:   float64(index),
		Value:     value,
		Mean:      &mean,
		StdDev:    &stdDev,
		ZScore:    &z,
		IsAnomaly: anomaly,
		CreatedAt: at,
	}
}

func TestSQLiteUpsertAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	// Index 0 falls in the fill phase: no score fields.
	fill := StreamSample{TimeIndex: 0, Elapsed: 0, Value: 9.8, CreatedAt: now}
	if err := store.UpsertSample(ctx, fill); err != nil {
		t.Fatalf("UpsertSample: %v", err)
	}
	if err := store.UpsertSample(ctx, scoredSample(1, 10.2, 0.1, false, now.Add(time.Second))); err != nil {
		t.Fatalf("UpsertSample: %v", err)
	}
	if err := store.UpsertSample(ctx, scoredSample(2, 25.0, 7.5, true, now.Add(2*time.Second))); err != nil {
		t.Fatalf("UpsertSample: %v", err)
	}

	count, err := store.CountSamples(ctx)
	if err != nil {
		t.Fatalf("CountSamples: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 samples, got %d", count)
	}

	samples, err := store.ListRecentSamples(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentSamples: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if samples[0].TimeIndex != 2 || samples[2].TimeIndex != 0 {
		t.Fatalf("samples should be newest first: %+v", samples)
	}
	if samples[2].ZScore != nil {
		t.Fatal("fill-phase sample should round-trip with nil score")
	}
	if samples[0].ZScore == nil || *samples[0].ZScore != 7.5 {
		t.Fatalf("scored sample lost its z-score: %+v", samples[0])
	}
	if !samples[0].CreatedAt.Equal(now.Add(2 * time.Second)) {
		t.Fatalf("created_at did not round-trip: %s", samples[0].CreatedAt)
	}
}

func TestSQLiteUpsertReplacesExistingIndex(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.UpsertSample(ctx, scoredSample(5, 11.0, 0.5, false, now)); err != nil {
		t.Fatalf("UpsertSample: %v", err)
	}
	if err := store.UpsertSample(ctx, scoredSample(5, 30.0, 9.9, true, now)); err != nil {
		t.Fatalf("UpsertSample (replace): %v", err)
	}

	count, err := store.CountSamples(ctx)
	if err != nil {
		t.Fatalf("CountSamples: %v", err)
	}
	if count != 1 {
		t.Fatalf("upsert should not duplicate rows, got %d", count)
	}

	samples, err := store.ListRecentSamples(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecentSamples: %v", err)
	}
	if samples[0].Value != 30.0 || !samples[0].IsAnomaly {
		t.Fatalf("row should carry the replacement values: %+v", samples[0])
	}
}

func TestSQLiteListRecentAnomalies(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := int64(0); i < 5; i++ {
		anomaly := i == 1 || i == 3
		z := 0.2
		if anomaly {
			z = 5.0
		}
		if err := store.UpsertSample(ctx, scoredSample(i, 10, z, anomaly, now)); err != nil {
			t.Fatalf("UpsertSample: %v", err)
		}
	}

	anomalies, err := store.ListRecentAnomalies(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentAnomalies: %v", err)
	}
	if len(anomalies) != 2 {
		t.Fatalf("expected 2 anomalies, got %d", len(anomalies))
	}
	if anomalies[0].TimeIndex != 3 || anomalies[1].TimeIndex != 1 {
		t.Fatalf("anomalies should be newest first: %+v", anomalies)
	}
}

func TestSQLiteListSamplesBetween(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	for i := int64(0); i < 4; i++ {
		sample := scoredSample(i, 10, 0, false, base.Add(time.Duration(i)*time.Hour))
		if err := store.UpsertSample(ctx, sample); err != nil {
			t.Fatalf("UpsertSample: %v", err)
		}
	}

	// Half-open window [01:00, 03:00) keeps indices 1 and 2.
	samples, err := store.ListSamplesBetween(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("ListSamplesBetween: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].TimeIndex != 1 || samples[1].TimeIndex != 2 {
		t.Fatalf("between listing should be ascending by index: %+v", samples)
	}
}

func TestSQLiteNotConfigured(t *testing.T) {
	var store *SQLiteStore
	if err := store.Init(context.Background()); err != ErrNotConfigured {
		t.Fatalf("nil store should report ErrNotConfigured, got %v", err)
	}
	if _, err := store.CountSamples(context.Background()); err != ErrNotConfigured {
		t.Fatalf("nil store should report ErrNotConfigured, got %v", err)
	}
}
