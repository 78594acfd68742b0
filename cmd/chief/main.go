package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chief",
	Short: "LionChief locomotive remote control",
	Long: `Command-line remote control for Lionel LionChief locomotives over
Bluetooth LE:

- Set speed directly or ramp to it gradually with the bell ringing
- Sound the horn, by duration or as a whistle pattern
- Toggle the bell and the direction of travel
- Play speech phrases and tune per-channel volume and pitch
- Listen to the notifications the locomotive sends back

Speaks the interactive gatttool protocol underneath, so it runs anywhere
bluez does.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		// Print user-friendly error message
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	// Add subcommands
	rootCmd.AddCommand(speedCmd)
	rootCmd.AddCommand(rampCmd)
	rootCmd.AddCommand(hornCmd)
	rootCmd.AddCommand(bellCmd)
	rootCmd.AddCommand(reverseCmd)
	rootCmd.AddCommand(speakCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(pitchCmd)
	rootCmd.AddCommand(listenCmd)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (YAML); defaults apply when absent")
	rootCmd.PersistentFlags().StringP("address", "a", "", "Locomotive Bluetooth address (aa:bb:cc:dd:ee:ff)")
	rootCmd.PersistentFlags().String("adapter", "", "Local HCI adapter (default hci0)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Debug logging shorthand")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
