package detector

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientData indicates the history is shorter than the requested
// window, so no score can be computed.
var ErrInsufficientData = errors.New("detector: not enough observations for window")

// MovingAverage returns the arithmetic mean of the trailing windowSize
// elements of values.
func MovingAverage(values []float64, windowSize int) (float64, error) {
	window, err := tail(values, windowSize)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window)), nil
}

// StdDev returns the population standard deviation (divide by N, not N-1)
// of the trailing windowSize elements of values.
func StdDev(values []float64, windowSize int) (float64, error) {
	window, err := tail(values, windowSize)
	if err != nil {
		return 0, err
	}

	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))

	variance := 0.0
	for _, v := range window {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(window))
	return math.Sqrt(variance), nil
}

// ZScore reports how many standard deviations value lies from mean. A
// non-positive stdDev yields 0: a constant window has no meaningful
// distance, and dividing by zero is the only alternative.
func ZScore(value, mean, stdDev float64) float64 {
	if stdDev > 0 {
		return (value - mean) / stdDev
	}
	return 0
}

func tail(values []float64, windowSize int) ([]float64, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("detector: window size must be at least 1, got %d", windowSize)
	}
	if len(values) < windowSize {
		return nil, ErrInsufficientData
	}
	return values[len(values)-windowSize:], nil
}

// Result is the score computed for a single observation.
type Result struct {
	TimeIndex int64   `json:"time_index"`
	Value     float64 `json:"value"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	ZScore    float64 `json:"z_score"`
	IsAnomaly bool    `json:"is_anomaly"`
}

// Detector folds observations into a trailing window and scores each new
// value once the window has filled.
type Detector struct {
	window     *rollingWindow
	windowSize int
	threshold  float64
	seen       int64
}

// New validates the parameters and builds a Detector.
func New(windowSize int, threshold float64) (*Detector, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("detector: window size must be at least 1, got %d", windowSize)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("detector: threshold must be positive, got %g", threshold)
	}
	return &Detector{
		window:     newRollingWindow(windowSize),
		windowSize: windowSize,
		threshold:  threshold,
	}, nil
}

// Observe adds one observation. ok is false while the history is still no
// longer than the window size; in that fill phase no score exists. The
// scoring window always includes the newest value.
func (d *Detector) Observe(index int64, value float64) (Result, bool) {
	d.window.Add(value)
	d.seen++

	if d.seen <= int64(d.windowSize) {
		return Result{}, false
	}

	window := d.window.Snapshot()
	mean, err := MovingAverage(window, d.windowSize)
	if err != nil {
		return Result{}, false
	}
	stdDev, err := StdDev(window, d.windowSize)
	if err != nil {
		return Result{}, false
	}
	z := ZScore(value, mean, stdDev)

	return Result{
		TimeIndex: index,
		Value:     value,
		Mean:      mean,
		StdDev:    stdDev,
		ZScore:    z,
		IsAnomaly: math.Abs(z) > d.threshold,
	}, true
}

// WindowSize returns the configured trailing window length.
func (d *Detector) WindowSize() int { return d.windowSize }

// Threshold returns the configured absolute Z-score threshold.
func (d *Detector) Threshold() float64 { return d.threshold }
