package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Output: &buf})
		require.NoError(t, err)
		defer logger.Close()

		zl := logger.GetZerolog()
		zl.Info().Str("tool", "get_weather").Msg("Tool executed")
		assert.Contains(t, buf.String(), `"tool":"get_weather"`)
		assert.Contains(t, buf.String(), `"message":"Tool executed"`)
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "toolgate.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		zl := logger.GetZerolog()
		zl.Debug().Msg("debug message")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "debug message")
	})

	t.Run("redaction", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Redaction: true, Output: &buf})
		require.NoError(t, err)
		assert.NotNil(t, logger.redactor)

		zl := logger.GetZerolog()
		zl.Info().Str("password", "hunter2").Msg("login")
		assert.NotContains(t, buf.String(), "hunter2")
		assert.Contains(t, buf.String(), "[REDACTED]")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "loud"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Console: true, Output: &buf})
	require.NoError(t, err)

	child := logger.Component("gateway")
	child.Info().Msg("started")
	assert.Contains(t, buf.String(), `"component":"gateway"`)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Empty(t, cfg.File)
}
