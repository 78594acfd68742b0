package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/lionchief"
)

// speedCmd represents the speed command
var speedCmd = &cobra.Command{
	Use:   "speed <value>",
	Short: "Set the locomotive speed immediately",
	Long: `Sets the locomotive speed in one step, 0 to 31.

Examples:
  # Full stop
  chief speed 0 -a aa:bb:cc:dd:ee:ff

  # Cruising
  chief speed 12 -a aa:bb:cc:dd:ee:ff

For a gradual change use 'chief ramp' instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runSpeed,
}

const maxSpeed = 31

func parseSpeed(arg string) (int, error) {
	speed, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("speed %q is not a number", arg)
	}
	if speed < 0 || speed > maxSpeed {
		return 0, fmt.Errorf("speed %d out of range [0, %d]", speed, maxSpeed)
	}
	return speed, nil
}

func runSpeed(cmd *cobra.Command, args []string) error {
	speed, err := parseSpeed(args[0])
	if err != nil {
		return err
	}

	return withChief(cmd, func(_ context.Context, train *lionchief.Chief) error {
		return train.SetSpeed(speed)
	})
}
