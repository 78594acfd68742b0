package main

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainshed/chief/internal/config"
	"github.com/trainshed/chief/internal/gatt"
)

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

func TestParseSpeed(t *testing.T) {
	tests := []struct {
		arg   string
		want  int
		valid bool
	}{
		{"0", 0, true},
		{"31", 31, true},
		{"12", 12, true},
		{"-1", 0, false},
		{"32", 0, false},
		{"fast", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			speed, err := parseSpeed(tt.arg)
			if tt.valid {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, speed)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseOnOff(t *testing.T) {
	for _, arg := range []string{"on", "true", "1"} {
		on, err := parseOnOff(arg)
		assert.NoError(t, err)
		assert.True(t, on, arg)
	}
	for _, arg := range []string{"off", "false", "0"} {
		on, err := parseOnOff(arg)
		assert.NoError(t, err)
		assert.False(t, on, arg)
	}
	_, err := parseOnOff("maybe")
	assert.Error(t, err)
}

func TestParseSubscriptionKind(t *testing.T) {
	tests := []struct {
		arg   string
		want  gatt.SubscriptionKind
		valid bool
	}{
		{"notify", gatt.KindNotify, true},
		{"Notification", gatt.KindNotify, true},
		{"indicate", gatt.KindIndicate, true},
		{"both", gatt.KindBoth, true},
		{"none", gatt.KindNone, false},
		{"loud", gatt.KindNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			kind, err := parseSubscriptionKind(tt.arg)
			if tt.valid {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, kind)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfigureLoggerPrecedence(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().String("log-level", "", "")
		cmd.Flags().Bool("verbose", false, "")
		return cmd
	}

	cfg := config.DefaultConfig()
	cfg.LogLevel = "warn"

	t.Run("config file level applies without flags", func(t *testing.T) {
		logger, err := configureLogger(newCmd(), cfg)
		require.NoError(t, err)
		assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	})

	t.Run("verbose overrides config", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("verbose", "true"))
		logger, err := configureLogger(cmd, cfg)
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	})

	t.Run("log-level overrides verbose", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("verbose", "true"))
		require.NoError(t, cmd.Flags().Set("log-level", "error"))
		logger, err := configureLogger(cmd, cfg)
		require.NoError(t, err)
		assert.Equal(t, logrus.ErrorLevel, logger.GetLevel())
	})

	t.Run("invalid level is rejected", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("log-level", "shouting"))
		_, err := configureLogger(cmd, cfg)
		assert.Error(t, err)
	})
}

func TestFormatUserError(t *testing.T) {
	msg := FormatUserError(fmt.Errorf("speed: %w", gatt.ErrNotConnected))
	assert.Contains(t, msg, "powered on and in range")

	msg = FormatUserError(fmt.Errorf("plain failure"))
	assert.Equal(t, "plain failure", msg)
}
