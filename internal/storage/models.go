package storage

import (
	"time"

	"stream-anomaly-alerts/internal/detector"
	"stream-anomaly-alerts/internal/stream"
)

// StreamSample is one persisted observation. The score fields are nil while
// the detector window is still filling.
type StreamSample struct {
	TimeIndex int64     `json:"time_index"`
	Elapsed   float64   `json:"elapsed_sec"`
	Value     float64   `json:"value"`
	Mean      *float64  `json:"mean,omitempty"`
	StdDev    *float64  `json:"std_dev,omitempty"`
	ZScore    *float64  `json:"z_score,omitempty"`
	IsAnomaly bool      `json:"is_anomaly"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSample builds a StreamSample from a generated point and, when scored,
// its detector result.
func NewSample(point stream.Point, result detector.Result, scored bool, at time.Time) StreamSample {
	sample := StreamSample{
		TimeIndex: point.Index,
		Elapsed:   point.Elapsed.Seconds(),
		Value:     point.Value,
		CreatedAt: at,
	}
	if scored {
		mean := result.Mean
		stdDev := result.StdDev
		z := result.ZScore
		sample.Mean = &mean
		sample.StdDev = &stdDev
		sample.ZScore = &z
		sample.IsAnomaly = result.IsAnomaly
	}
	return sample
}
