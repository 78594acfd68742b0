package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "hci0", cfg.Adapter)
	assert.Equal(t, uint16(0x25), cfg.WriteHandle)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 5, cfg.ConnectRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RampInterval)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chief.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"address: \"aa:bb:cc:dd:ee:ff\"\nconnect_retries: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", cfg.Address)
	assert.Equal(t, 2, cfg.ConnectRetries)
	// Untouched fields keep their defaults.
	assert.Equal(t, "hci0", cfg.Adapter)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("address: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		tweak func(*Config)
		valid bool
	}{
		{
			name:  "complete config is valid",
			tweak: func(c *Config) { c.Address = "a0:b1:c2:d3:e4:f5" },
			valid: true,
		},
		{
			name:  "missing address",
			tweak: func(c *Config) {},
			valid: false,
		},
		{
			name:  "malformed address",
			tweak: func(c *Config) { c.Address = "not-a-mac" },
			valid: false,
		},
		{
			name: "non-positive retries",
			tweak: func(c *Config) {
				c.Address = "a0:b1:c2:d3:e4:f5"
				c.ConnectRetries = 0
			},
			valid: false,
		},
		{
			name: "non-positive timeout",
			tweak: func(c *Config) {
				c.Address = "a0:b1:c2:d3:e4:f5"
				c.ConnectTimeout = 0
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.tweak(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: "debug",
			want:     logrus.DebugLevel,
		},
		{
			name:     "creates logger with info level",
			logLevel: "info",
			want:     logrus.InfoLevel,
		},
		{
			name:     "creates logger with warn level",
			logLevel: "warn",
			want:     logrus.WarnLevel,
		},
		{
			name:     "creates logger with error level",
			logLevel: "error",
			want:     logrus.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger, err := cfg.NewLogger()
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_NewLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := &Config{LogLevel: "shouting"}
	_, err := cfg.NewLogger()
	assert.Error(t, err)
}
