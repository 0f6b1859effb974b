package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration.
// Precedence: defaults, then the YAML file, then flags set on the command line.
type Config struct {
	// Op is the operator applied to stdin: debounce, sample or timeout.
	Op string `yaml:"op"`
	// Duration is the debounce quiet period, the sample period or the
	// timeout deadline.
	Duration time.Duration `yaml:"duration"`
	// Fallback is emitted instead of failing when a timeout fires.
	Fallback string `yaml:"fallback"`
	// Name labels the operator in logs and metrics.
	Name string `yaml:"name"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig controls the stderr logger.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format: json or console.
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9100".
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Op:       "debounce",
		Duration: 300 * time.Millisecond,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate rejects configurations no operator can run with.
func (c *Config) Validate() error {
	switch c.Op {
	case "debounce", "sample", "timeout":
	default:
		return fmt.Errorf("unknown operator %q (want debounce, sample or timeout)", c.Op)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative: %v", c.Duration)
	}
	if c.Fallback != "" && c.Op != "timeout" {
		return errors.New("fallback is only valid with the timeout operator")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// loadConfig parses args and returns the merged configuration.
func loadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("tempo", flag.ContinueOnError)
	var (
		path     = fs.String("config", "", "path to a YAML config file")
		op       = fs.String("op", "", "operator: debounce, sample or timeout")
		d        = fs.Duration("d", 0, "operator duration (quiet period, period or deadline)")
		fallback = fs.String("fallback", "", "text emitted when a timeout fires")
		name     = fs.String("name", "", "operator label in logs and metrics")
		level    = fs.String("log-level", "", "log level: debug, info, warn, error")
		format   = fs.String("log-format", "", "log format: json or console")
		addr     = fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if *path != "" {
		if err := loadFile(cfg, *path); err != nil {
			return nil, err
		}
	}

	// Only flags given explicitly override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "op":
			cfg.Op = *op
		case "d":
			cfg.Duration = *d
		case "fallback":
			cfg.Fallback = *fallback
		case "name":
			cfg.Name = *name
		case "log-level":
			cfg.Log.Level = *level
		case "log-format":
			cfg.Log.Format = *format
		case "metrics-addr":
			cfg.Metrics.Addr = *addr
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// newLogger builds a stderr logger; stdout carries the stream output.
func newLogger(c LogConfig) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
