package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/lionchief"
)

// hornCmd represents the horn command
var hornCmd = &cobra.Command{
	Use:   "horn [sequence]",
	Short: "Sound the horn",
	Long: `Sounds the horn for a fixed duration, or plays a whistle pattern.

A pattern is a string of '-' (long tone), '.' (short tone), and ' '
(rest). Without a pattern the horn sounds once for --duration.

Examples:
  # One second blast
  chief horn -a aa:bb:cc:dd:ee:ff

  # Grade crossing signal: long, long, short, long
  chief horn "-- .-" -a aa:bb:cc:dd:ee:ff

  # Three second blast
  chief horn --duration 3s -a aa:bb:cc:dd:ee:ff`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHorn,
}

var hornDuration time.Duration

func init() {
	hornCmd.Flags().DurationVar(&hornDuration, "duration", time.Second, "How long the horn sounds without a pattern")
}

func runHorn(cmd *cobra.Command, args []string) error {
	return withChief(cmd, func(ctx context.Context, train *lionchief.Chief) error {
		if len(args) == 1 {
			return train.HornSequence(ctx, args[0])
		}
		return train.Horn(ctx, hornDuration)
	})
}
