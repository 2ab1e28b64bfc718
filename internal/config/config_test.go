/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

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

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collector.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `addr = ":9000"`))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultMaxAttrLength, cfg.MaxAttrLength)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL.Duration)
}

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
addr = "127.0.0.1:8080"
db_path = ":memory:"
log_level = "debug"
log_format = "json"
max_attr_length = 4096
session_ttl = "2m"
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 4096, cfg.MaxAttrLength)
	assert.Equal(t, 2*time.Minute, cfg.SessionTTL.Duration)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":   `listen = ":1"`,
		"bad level":     `log_level = "loud"`,
		"bad format":    `log_format = "xml"`,
		"bad duration":  `session_ttl = "soon"`,
		"negative size": `max_attr_length = -1`,
		"not toml":      `addr = `,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("warn", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = NewLogger("warn", "xml")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewLogger("shout", "text")
	assert.Error(t, err)
}
