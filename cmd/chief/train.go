package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/config"
	"github.com/trainshed/chief/internal/gatt"
	"github.com/trainshed/chief/internal/gattsession"
	"github.com/trainshed/chief/internal/lionchief"
)

// loadConfig merges the config file (if any) with command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if address, _ := cmd.Flags().GetString("address"); address != "" {
		cfg.Address = address
	}
	if adapter, _ := cmd.Flags().GetString("adapter"); adapter != "" {
		cfg.Adapter = adapter
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// trainFactory builds one fresh gatttool session per connect attempt.
func trainFactory(cfg *config.Config, logger *logrus.Logger) lionchief.CommanderFactory {
	return func() (lionchief.Commander, error) {
		session, err := gattsession.New(cfg.Address, cfg.Adapter, logger)
		if err != nil {
			return nil, fmt.Errorf("start gatttool: %w", err)
		}
		return gatt.NewClient(session, nil, logger), nil
	}
}

// withChief runs op against a connected controller, tearing everything
// down afterwards. The context ends on Ctrl+C. Commands may adjust the
// merged configuration through tweaks before anything connects.
func withChief(cmd *cobra.Command, op func(ctx context.Context, train *lionchief.Chief) error, tweaks ...func(*config.Config)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	commands := lionchief.DefaultCommandSet()
	commands.WriteHandle = cfg.WriteHandle

	opts := lionchief.DefaultOptions()
	opts.AttemptTimeout = cfg.ConnectTimeout
	opts.RampInterval = cfg.RampInterval
	opts.OnConnectError = func(attempt, maxRetries int, err error) {
		color.New(color.FgYellow).Fprintf(os.Stderr,
			"connect attempt %d/%d failed: %v\n", attempt, maxRetries, err)
	}

	train := lionchief.New(trainFactory(cfg, logger), commands, opts, logger)
	defer func() { _ = train.Close() }()

	if err := train.Connect(cfg.ConnectRetries); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(os.Stderr, "Connected to %s\n", cfg.Address)

	return op(ctx, train)
}
