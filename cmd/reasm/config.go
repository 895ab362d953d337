package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/peacewang017/minnow"
	"github.com/peacewang017/minnow/internal/wire"
)

type Config struct {
	// Capacity of the stream join reassembles into, and so of its
	// acceptance window.
	Capacity uint64 `yaml:"capacity"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Split SplitConfig `yaml:"split"`
}

type SplitConfig struct {
	Seed int64 `yaml:"seed"`

	// MaxFragment is the longest fragment split cuts.
	MaxFragment int `yaml:"max_fragment"`

	// Duplicate is the probability that a fragment is emitted twice.
	Duplicate float64 `yaml:"duplicate"`
}

func DefaultConfig() *Config {
	return &Config{
		Capacity: minnow.DefaultCapacity,
		LogLevel: "info",
		Split: SplitConfig{
			Seed:        1,
			MaxFragment: 512,
			Duplicate:   0.1,
		},
	}
}

// LoadConfig returns the defaults overridden by the YAML file at path, if
// path is not empty.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.Capacity == 0 {
		errs = append(errs, "capacity must be positive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("log_level: %v", err))
	}
	if c.Split.MaxFragment <= 0 || c.Split.MaxFragment > wire.MaxFrameData {
		errs = append(errs, fmt.Sprintf("split.max_fragment must be in [1, %d]", wire.MaxFrameData))
	}
	if c.Split.Duplicate < 0 || c.Split.Duplicate > 1 {
		errs = append(errs, "split.duplicate must be in [0, 1]")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
