package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/trainshed/chief/internal/gatt"
	"github.com/trainshed/chief/internal/gattsession"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print the notifications a characteristic sends",
	Long: `Subscribes to a characteristic and prints every notification until
interrupted.

Examples:
  # Watch the locomotive's status characteristic
  chief listen --handle 0x26 -a aa:bb:cc:dd:ee:ff

  # Indications as well as notifications
  chief listen --handle 0x26 --kind both -a aa:bb:cc:dd:ee:ff`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

var (
	listenHandle string
	listenKind   string
)

func init() {
	listenCmd.Flags().StringVar(&listenHandle, "handle", "0x26", "Value handle to subscribe to")
	listenCmd.Flags().StringVar(&listenKind, "kind", "notify", "Subscription kind: notify, indicate, or both")
}

func parseSubscriptionKind(kind string) (gatt.SubscriptionKind, error) {
	switch strings.ToLower(kind) {
	case "notify", "notification":
		return gatt.KindNotify, nil
	case "indicate", "indication":
		return gatt.KindIndicate, nil
	case "both":
		return gatt.KindBoth, nil
	default:
		return gatt.KindNone, fmt.Errorf("invalid kind %q: use notify, indicate, or both", kind)
	}
}

// printedNotification writes one received value to stdout.
type printedNotification struct{}

func (printedNotification) HandleNotification(handle uint16, payload []byte) {
	stamp := time.Now().Format("15:04:05.000")
	color.New(color.FgCyan).Printf("%s 0x%04x ", stamp, handle)
	fmt.Println(hex.EncodeToString(payload))
}

func runListen(cmd *cobra.Command, args []string) error {
	handle64, err := strconv.ParseUint(strings.TrimPrefix(listenHandle, "0x"), 16, 16)
	if err != nil {
		return fmt.Errorf("handle %q is not a 16-bit hex value", listenHandle)
	}
	handle := uint16(handle64)

	kind, err := parseSubscriptionKind(listenKind)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	session, err := gattsession.New(cfg.Address, cfg.Adapter, logger)
	if err != nil {
		return fmt.Errorf("start gatttool: %w", err)
	}

	client := gatt.NewClient(session, nil, logger)
	defer func() { _ = client.Stop() }()

	if err := client.Connect(cfg.ConnectTimeout); err != nil {
		return err
	}

	handler := printedNotification{}
	if err := client.Subscribe(handle, handler, kind); err != nil {
		return err
	}
	defer func() { _ = client.Unsubscribe(handle, handler) }()

	fmt.Fprintf(os.Stderr, "Listening on 0x%04x. Press Ctrl+C to stop...\n", handle)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	<-sigChan
	return context.Canceled
}
