// Package commands implements the uadv CLI commands.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/opcua-go/pkg/datavalue"
)

// Config holds the settings shared by all commands. Flags override the
// values loaded from the configuration file.
type Config struct {
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// Strict rejects reserved mask bits and out-of-range picoseconds.
	Strict bool `yaml:"strict"`

	// TimestampsToReturn is applied to decoded values when set
	// (source, server, both, neither). Empty keeps them as decoded.
	TimestampsToReturn string `yaml:"timestamps_to_return"`

	// Compress enables zstd for newly created capture files.
	Compress bool `yaml:"compress"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Strict:   true,
	}
}

// LoadConfig reads a YAML configuration file. Keys missing from the file
// keep their default values. An empty path returns DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.TimestampsToReturn != "" {
		if _, err := datavalue.ParseTimestampsToReturn(c.TimestampsToReturn); err != nil {
			return err
		}
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// DecodeOptions returns the codec options selected by the configuration.
func (c Config) DecodeOptions() datavalue.DecodeOptions {
	return datavalue.DecodeOptions{Strict: c.Strict}
}

// NewLogger creates a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
