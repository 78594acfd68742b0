package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// Config holds application configuration
type Config struct {
	// Address is the Bluetooth MAC of the locomotive, aa:bb:cc:dd:ee:ff.
	Address string `yaml:"address"`
	// Adapter is the local HCI device used for the connection.
	Adapter string `yaml:"adapter" default:"hci0"`
	// WriteHandle is the GATT characteristic commands are written to.
	// 37 is 0x25, the LionChief command characteristic.
	WriteHandle uint16 `yaml:"write_handle" default:"37"`

	LogLevel       string        `yaml:"log_level" default:"info"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"3s"`
	ConnectRetries int           `yaml:"connect_retries" default:"5"`
	RampInterval   time.Duration `yaml:"ramp_interval" default:"500ms"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML configuration file, filling unset fields with
// defaults. A missing file is not an error; the defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	defaults.SetDefaults(cfg)
	return cfg, nil
}

// Validate checks that the configuration can drive a connection.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("device address is required")
	}
	if !macPattern.MatchString(c.Address) {
		return fmt.Errorf("device address %q is not a MAC address", c.Address)
	}
	if c.ConnectRetries <= 0 {
		return fmt.Errorf("connect_retries must be positive, got %d", c.ConnectRetries)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %s", c.ConnectTimeout)
	}
	return nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}
