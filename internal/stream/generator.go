package stream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"stream-anomaly-alerts/internal/config"
)

// ErrStreamEnded marks the natural end of a finite stream.
var ErrStreamEnded = errors.New("stream: duration elapsed")

// Point is a single generated observation. Index increases monotonically
// from 0; Elapsed is measured from the first emission.
type Point struct {
	Index   int64
	Elapsed time.Duration
	Value   float64
}

// Source yields successive points of a finite stream.
type Source interface {
	Next(ctx context.Context) (Point, error)
}

// Options configure a Generator.
type Options struct {
	Duration time.Duration
	Interval time.Duration
	Signal   config.SignalConfig
	// Seed fixes the noise sequence; 0 seeds from the clock.
	Seed  int64
	Clock Clock
}

// Generator produces a noise-perturbed two-sine waveform, one point per
// interval, until the configured duration elapses. The sequence is lazy,
// finite, and not restartable.
type Generator struct {
	opts    Options
	clock   Clock
	rng     *rand.Rand
	logger  zerolog.Logger
	start   time.Time
	index   int64
	started bool
	done    bool
}

// NewGenerator validates options and builds a Generator. Invalid duration or
// interval fails here, before any value is produced.
func NewGenerator(opts Options, logger zerolog.Logger) (*Generator, error) {
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("stream: duration must be positive, got %s", opts.Duration)
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("stream: interval must be positive, got %s", opts.Interval)
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}

	seed := opts.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}

	return &Generator{
		opts:   opts,
		clock:  clock,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger.With().Str("component", "stream").Logger(),
	}, nil
}

// Next blocks for one interval (except before the first point) and returns
// the next observation. Once elapsed time reaches the duration it returns
// ErrStreamEnded, and keeps doing so on subsequent calls.
func (g *Generator) Next(ctx context.Context) (Point, error) {
	if g.done {
		return Point{}, ErrStreamEnded
	}

	if !g.started {
		g.started = true
		g.start = g.clock.Now()
	} else {
		select {
		case <-ctx.Done():
			return Point{}, ctx.Err()
		case <-g.clock.After(g.opts.Interval):
		}
	}

	elapsed := g.clock.Now().Sub(g.start)
	if elapsed >= g.opts.Duration {
		g.done = true
		g.logger.Debug().Int64("points", g.index).Msg("stream ended")
		return Point{}, ErrStreamEnded
	}

	point := Point{
		Index:   g.index,
		Elapsed: elapsed,
		Value:   g.valueAt(elapsed.Seconds()),
	}
	g.index++
	return point, nil
}

func (g *Generator) valueAt(t float64) float64 {
	sig := g.opts.Signal
	regular := sig.PrimaryAmplitude * math.Sin(sig.PrimaryFrequency*t)
	seasonal := sig.SeasonalAmplitude * math.Sin(sig.SeasonalFrequency*t)
	noise := 0.0
	if sig.NoiseSpan > 0 {
		noise = (g.rng.Float64()*2 - 1) * sig.NoiseSpan
	}
	return regular + seasonal + noise
}

var _ Source = (*Generator)(nil)
