// Package logging builds the structured logger shared by the engine, the
// scheduler and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Formats accepted by Config.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config controls level, format and optional rotating file output.
type Config struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	Format     string `json:"format" yaml:"format" mapstructure:"format"`
	File       string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `json:"maxSizeMB,omitempty" yaml:"maxSizeMB,omitempty" mapstructure:"maxSizeMB"`
	MaxBackups int    `json:"maxBackups,omitempty" yaml:"maxBackups,omitempty" mapstructure:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays,omitempty" yaml:"maxAgeDays,omitempty" mapstructure:"maxAgeDays"`
}

// DefaultConfig logs info and above as text to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatText, MaxSizeMB: 100, MaxBackups: 3}
}

// New creates a logger. When File is set, output goes to a lumberjack
// rotated file instead of stderr.
func New(config Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level := config.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}
	logger.SetLevel(parsed)
	switch config.Format {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format %q", config.Format)
	}
	logger.SetOutput(Writer(config))
	return logger, nil
}

// Writer returns the output configured by config.
func Writer(config Config) io.Writer {
	if config.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   config.File,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAgeDays,
	}
}
