package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/lionchief"
)

// bellCmd represents the bell command
var bellCmd = &cobra.Command{
	Use:   "bell <on|off>",
	Short: "Ring or silence the bell",
	Args:  cobra.ExactArgs(1),
	RunE:  runBell,
}

// parseOnOff accepts on/off and their common aliases.
func parseOnOff(arg string) (bool, error) {
	switch arg {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected 'on' or 'off', got %q", arg)
	}
}

func runBell(cmd *cobra.Command, args []string) error {
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}

	return withChief(cmd, func(_ context.Context, train *lionchief.Chief) error {
		return train.SetBell(on)
	})
}
