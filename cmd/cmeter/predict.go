package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-meter/internal/config"
	"github.com/j-veylop/claude-meter/internal/db"
	"github.com/j-veylop/claude-meter/internal/logger"
	"github.com/j-veylop/claude-meter/internal/predictor"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Print exhaustion forecasts",
	Long:  "Prints the current burn rate and projected exhaustion time for every quota window with recorded history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger.Setup(cfg.LogPath, slog.LevelWarn)

		database, err := db.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer database.Close()

		pred := predictor.New(database, cfg.PredictionSamples)

		windows, err := database.Windows()
		if err != nil {
			return err
		}
		if len(windows) == 0 {
			fmt.Println("No usage history recorded yet.")
			return nil
		}

		now := time.Now().UTC()
		for _, id := range windows {
			p, err := pred.Predict(id, now)
			if err != nil {
				return err
			}

			fmt.Printf("%-10s %5.1f%% used", p.WindowID, p.CurrentUsed)

			switch {
			case p.Exhausted:
				fmt.Printf("  EXHAUSTED")
			case p.RatePerHour == nil:
				fmt.Printf("  insufficient data (%d samples)", p.BasisPointCount)
			case p.ProjectedExhaustionAt == nil:
				fmt.Printf("  %+.2f%%/h, no exhaustion at current rate", *p.RatePerHour)
			default:
				fmt.Printf("  %+.2f%%/h, exhausts in %s", *p.RatePerHour,
					p.TimeToExhaustion().Round(time.Minute))
				if p.ClampedToReset {
					fmt.Printf(" (at window reset)")
				}
			}

			if !p.ResetAt.IsZero() {
				fmt.Printf("  resets %s", p.ResetAt.Local().Format("Mon 15:04"))
			}
			fmt.Println()
		}

		return nil
	},
}
