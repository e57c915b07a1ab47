package alerting

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"stream-anomaly-alerts/internal/detector"
)

// Notification captures the context of one anomaly alert. Values are carried
// as decimals so every channel renders the same fixed-point text.
type Notification struct {
	TimeIndex  int64
	Observed   decimal.Decimal
	Mean       decimal.Decimal
	StdDev     decimal.Decimal
	ZScore     decimal.Decimal
	Threshold  decimal.Decimal
	Direction  string
	Channels   []string
	ObservedAt time.Time
}

// Notifier delivers alerts to one channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// FromResult converts a scored detector result into a notification.
func FromResult(result detector.Result, threshold float64, channels []string, at time.Time) Notification {
	return Notification{
		TimeIndex:  result.TimeIndex,
		Observed:   decimal.NewFromFloat(result.Value),
		Mean:       decimal.NewFromFloat(result.Mean),
		StdDev:     decimal.NewFromFloat(result.StdDev),
		ZScore:     decimal.NewFromFloat(result.ZScore),
		Threshold:  decimal.NewFromFloat(threshold),
		Direction:  classifyDirection(result.ZScore),
		Channels:   channels,
		ObservedAt: at,
	}
}

func classifyDirection(z float64) string {
	switch {
	case z > 0:
		return "above"
	case z < 0:
		return "below"
	default:
		return "flat"
	}
}

// Fanout dispatches one notification to every channel and joins failures.
type Fanout []Notifier

// Notify sends to all channels; one failing channel does not stop the rest.
func (f Fanout) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Notifier = (Fanout)(nil)
