package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/config"
	"github.com/trainshed/chief/internal/lionchief"
)

// rampCmd represents the ramp command
var rampCmd = &cobra.Command{
	Use:   "ramp <target-speed>",
	Short: "Ramp the speed up or down gradually",
	Long: `Changes the speed one step at a time until the target is reached,
ringing the bell for the duration of the ramp.

Examples:
  # Pull away gently
  chief ramp 10 -a aa:bb:cc:dd:ee:ff

  # Slow to a crawl, one step every second
  chief ramp 2 --interval 1s -a aa:bb:cc:dd:ee:ff`,
	Args: cobra.ExactArgs(1),
	RunE: runRamp,
}

var rampInterval time.Duration

func init() {
	rampCmd.Flags().DurationVar(&rampInterval, "interval", 0, "Pause between speed steps (default from config, 500ms)")
}

func runRamp(cmd *cobra.Command, args []string) error {
	target, err := parseSpeed(args[0])
	if err != nil {
		return err
	}

	return withChief(cmd, func(ctx context.Context, train *lionchief.Chief) error {
		return train.Ramp(ctx, target)
	}, func(cfg *config.Config) {
		if rampInterval > 0 {
			cfg.RampInterval = rampInterval
		}
	})
}
