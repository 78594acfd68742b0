package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/lionchief"
)

// reverseCmd represents the reverse command
var reverseCmd = &cobra.Command{
	Use:   "reverse <on|off>",
	Short: "Select the direction of travel",
	Long: `Selects reverse (on) or forward (off) travel. Change direction at a
standstill; the locomotive ignores it at speed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReverse,
}

func runReverse(cmd *cobra.Command, args []string) error {
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}

	return withChief(cmd, func(_ context.Context, train *lionchief.Chief) error {
		return train.SetReverse(on)
	})
}
