/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

const (
	DefaultAddr          = ":8443"
	DefaultDBPath        = "pts_aik.db"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultMaxAttrLength = 64 * 1024
	DefaultSessionTTL    = 30 * time.Second
)

var ErrInvalidConfig = errors.New("invalid config")

// CollectorConfig captures the tunables required to start the AIK collector.
type CollectorConfig struct {
	Addr      string `toml:"addr"`
	DBPath    string `toml:"db_path"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	// MaxAttrLength bounds the reassembled attribute value accepted per session.
	MaxAttrLength int      `toml:"max_attr_length"`
	SessionTTL    Duration `toml:"session_ttl"`

	Logger logrus.FieldLogger `toml:"-"`
}

// Duration decodes TOML strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a CollectorConfig with default values.
func Default() CollectorConfig {
	cfg := CollectorConfig{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a TOML file, applies defaults and validates the result.
func Load(path string) (CollectorConfig, error) {
	var cfg CollectorConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return CollectorConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return CollectorConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return CollectorConfig{}, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalidConfig, path, undecoded)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return CollectorConfig{}, err
	}
	return cfg, nil
}

func (c *CollectorConfig) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MaxAttrLength == 0 {
		c.MaxAttrLength = DefaultMaxAttrLength
	}
	if c.SessionTTL.Duration == 0 {
		c.SessionTTL.Duration = DefaultSessionTTL
	}
}

func (c CollectorConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: missing addr", ErrInvalidConfig)
	}
	if c.MaxAttrLength < 0 {
		return fmt.Errorf("%w: max_attr_length must be positive", ErrInvalidConfig)
	}
	if c.SessionTTL.Duration < 0 {
		return fmt.Errorf("%w: session_ttl must be positive", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// NewLogger builds the root logger for the given level and format.
func NewLogger(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, format)
	}
	return logger, nil
}
