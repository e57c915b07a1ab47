package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"stream-anomaly-alerts/internal/app"
)

var (
	simulateValue  float64
	simulateMean   float64
	simulateStdDev float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Push one synthetic anomaly through the alert channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateStdDev < 0 {
			return errors.New("--stddev cannot be negative")
		}

		opts := app.SimulateOptions{
			Value:  simulateValue,
			Mean:   simulateMean,
			StdDev: simulateStdDev,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateValue, "value", 10, "Observed value")
	simulateCmd.Flags().Float64Var(&simulateMean, "mean", 0, "Window mean")
	simulateCmd.Flags().Float64Var(&simulateStdDev, "stddev", 1, "Window standard deviation")
}
