package stream

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stream-anomaly-alerts/internal/config"
)

func testSignal() config.SignalConfig {
	return config.SignalConfig{
		PrimaryAmplitude:  10,
		PrimaryFrequency:  0.2,
		SeasonalAmplitude: 5,
		SeasonalFrequency: 0.05,
		NoiseSpan:         1,
	}
}

func testOptions(clock Clock) Options {
	return Options{
		Duration: 5 * time.Second,
		Interval: time.Second,
		Signal:   testSignal(),
		Seed:     1,
		Clock:    clock,
	}
}

func TestNewGeneratorRejectsInvalidOptions(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{"zero duration", Options{Duration: 0, Interval: time.Second}},
		{"negative duration", Options{Duration: -time.Second, Interval: time.Second}},
		{"zero interval", Options{Duration: time.Second, Interval: 0}},
		{"negative interval", Options{Duration: time.Second, Interval: -time.Second}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewGenerator(tc.opts, zerolog.Nop()); err == nil {
				t.Fatal("expected an invalid-argument error")
			}
		})
	}
}

func TestGeneratorEmitsExactCountUnderSimulatedClock(t *testing.T) {
	clock := NewSimulatedClock(time.Unix(0, 0))
	gen, err := NewGenerator(testOptions(clock), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	ctx := context.Background()
	points := make([]Point, 0, 5)
	for {
		point, err := gen.Next(ctx)
		if errors.Is(err, ErrStreamEnded) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		points = append(points, point)
	}

	// duration/interval = 5 exactly; no timing jitter under the
	// simulated clock.
	if len(points) != 5 {
		t.Fatalf("expected 5 points, got %d", len(points))
	}

	for i, point := range points {
		if point.Index != int64(i) {
			t.Fatalf("expected index %d, got %d", i, point.Index)
		}
		if math.IsNaN(point.Value) || math.IsInf(point.Value, 0) {
			t.Fatalf("point %d is not finite: %g", i, point.Value)
		}
	}
}

func TestGeneratorIsNotRestartable(t *testing.T) {
	clock := NewSimulatedClock(time.Unix(0, 0))
	gen, err := NewGenerator(testOptions(clock), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	ctx := context.Background()
	for {
		if _, err := gen.Next(ctx); errors.Is(err, ErrStreamEnded) {
			break
		}
	}

	for i := 0; i < 3; i++ {
		if _, err := gen.Next(ctx); !errors.Is(err, ErrStreamEnded) {
			t.Fatalf("ended stream should keep reporting ErrStreamEnded, got %v", err)
		}
	}
}

func TestGeneratorDeterministicWithSeed(t *testing.T) {
	run := func() []float64 {
		clock := NewSimulatedClock(time.Unix(0, 0))
		gen, err := NewGenerator(testOptions(clock), zerolog.Nop())
		if err != nil {
			t.Fatalf("NewGenerator: %v", err)
		}
		values := make([]float64, 0, 5)
		for {
			point, err := gen.Next(context.Background())
			if errors.Is(err, ErrStreamEnded) {
				return values
			}
			values = append(values, point.Value)
		}
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("runs emitted different counts: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("seeded runs diverged at %d: %g vs %g", i, first[i], second[i])
		}
	}
}

func TestGeneratorValuesFollowWaveform(t *testing.T) {
	opts := testOptions(NewSimulatedClock(time.Unix(0, 0)))
	opts.Signal.NoiseSpan = 0 // deterministic waveform

	gen, err := NewGenerator(opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	for {
		point, err := gen.Next(context.Background())
		if errors.Is(err, ErrStreamEnded) {
			break
		}
		t0 := point.Elapsed.Seconds()
		expected := 10*math.Sin(0.2*t0) + 5*math.Sin(0.05*t0)
		if math.Abs(point.Value-expected) > 1e-9 {
			t.Fatalf("value at t=%g: expected %g, got %g", t0, expected, point.Value)
		}
	}
}

func TestGeneratorHonoursContextCancellation(t *testing.T) {
	gen, err := NewGenerator(Options{
		Duration: time.Hour,
		Interval: time.Hour,
		Signal:   testSignal(),
		Seed:     1,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := gen.Next(ctx); err != nil {
		t.Fatalf("first point should emit immediately: %v", err)
	}

	cancel()
	if _, err := gen.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
