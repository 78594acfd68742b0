package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/lionchief"
)

// pitchCmd represents the pitch command
var pitchCmd = &cobra.Command{
	Use:   "pitch <channel> <index>",
	Short: "Tune an audio channel's pitch",
	Long: `Selects one of the preset pitches for an audio channel. The index
runs from 0 (lowest) through the size of the pitch table; 2 is the
factory pitch.

Examples:
  # Deep horn
  chief pitch horn 0 -a aa:bb:cc:dd:ee:ff

  # Bright bell
  chief pitch bell 4 -a aa:bb:cc:dd:ee:ff`,
	Args: cobra.ExactArgs(2),
	RunE: runPitch,
}

func runPitch(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("pitch index %q is not a number", args[1])
	}

	return withChief(cmd, func(_ context.Context, train *lionchief.Chief) error {
		return train.SetChannelPitch(args[0], index)
	})
}
