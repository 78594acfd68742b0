package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/lionchief"
)

// speakCmd represents the speak command
var speakCmd = &cobra.Command{
	Use:   "speak [phrase]",
	Short: "Play a speech phrase",
	Long: `Plays one of the locomotive's recorded speech phrases. Phrases are
numbered from 0; without an argument phrase 0 plays.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSpeak,
}

func runSpeak(cmd *cobra.Command, args []string) error {
	phrase := byte(0)
	if len(args) == 1 {
		n, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return fmt.Errorf("phrase %q must be a number in [0, 255]", args[0])
		}
		phrase = byte(n)
	}

	return withChief(cmd, func(_ context.Context, train *lionchief.Chief) error {
		return train.Speak(phrase)
	})
}
