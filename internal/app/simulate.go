package app

import (
	"context"
	"errors"
	"time"

	"stream-anomaly-alerts/internal/alerting"
	"stream-anomaly-alerts/internal/detector"
)

// SimulateAlert pushes one synthetic scored result through the alert path,
// for verifying channel configuration end to end.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier, closeNotifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("no alert channels configured")
	}
	if closeNotifier != nil {
		defer closeNotifier()
	}

	z := detector.ZScore(opts.Value, opts.Mean, opts.StdDev)
	result := detector.Result{
		TimeIndex: 0,
		Value:     opts.Value,
		Mean:      opts.Mean,
		StdDev:    opts.StdDev,
		ZScore:    z,
		IsAnomaly: true,
	}

	note := alerting.FromResult(result, a.Config.Detector.Threshold, a.Config.Alerting.Channels, time.Now().UTC())
	return notifier.Notify(ctx, note)
}
