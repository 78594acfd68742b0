package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/lionchief"
)

// volumeCmd represents the volume command
var volumeCmd = &cobra.Command{
	Use:   "volume <level>",
	Short: "Set the master or per-channel volume",
	Long: `Sets the master volume, or one audio channel's volume with --channel.

Examples:
  # Master volume
  chief volume 5 -a aa:bb:cc:dd:ee:ff

  # Quieter bell only
  chief volume 2 --channel bell -a aa:bb:cc:dd:ee:ff

  # Show the channel names
  chief volume --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

var (
	volumeChannel string
	volumeList    bool
)

func init() {
	volumeCmd.Flags().StringVar(&volumeChannel, "channel", "", "Audio channel name; master volume when omitted")
	volumeCmd.Flags().BoolVar(&volumeList, "list", false, "List the audio channel names and exit")
}

func runVolume(cmd *cobra.Command, args []string) error {
	if volumeList {
		bold := color.New(color.Bold)
		bold.Fprintln(os.Stdout, "Audio channels:")
		for _, name := range lionchief.DefaultCommandSet().ChannelNames() {
			fmt.Fprintf(os.Stdout, "  %s\n", name)
		}
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("volume level required (or use --list)")
	}
	level, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return fmt.Errorf("volume %q must be a number in [0, 255]", args[0])
	}

	return withChief(cmd, func(_ context.Context, train *lionchief.Chief) error {
		if volumeChannel != "" {
			return train.SetChannelVolume(volumeChannel, byte(level))
		}
		return train.SetMasterVolume(byte(level))
	})
}
