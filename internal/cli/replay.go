package cli

import (
	"time"

	"github.com/spf13/cobra"

	"stream-anomaly-alerts/internal/app"
)

var (
	replayDuration time.Duration
	replayInterval time.Duration
	replayDryRun   bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a full stream instantly under the simulated clock",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReplayOptions{
			Duration: replayDuration,
			Interval: replayInterval,
			DryRun:   replayDryRun,
		}
		return getApp().Replay(cmd.Context(), opts)
	},
}

func init() {
	replayCmd.Flags().DurationVar(&replayDuration, "duration", 0, "Override stream duration (e.g. 5m)")
	replayCmd.Flags().DurationVar(&replayInterval, "interval", 0, "Override stream interval (e.g. 500ms)")
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "Run without writing to storage")
}
