package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/config"
)

// configureLogger creates a logger with the appropriate log level.
// --log-level takes precedence, then --verbose, then the config file's
// log_level. Returns a configured logger or error if the level is invalid.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	logLevel := cfg.LogLevel

	if logLevelStr, _ := cmd.Flags().GetString("log-level"); logLevelStr != "" {
		logLevel = logLevelStr
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = "debug"
	}

	resolved := *cfg
	resolved.LogLevel = logLevel
	return resolved.NewLogger()
}
