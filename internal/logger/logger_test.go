package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Output: &buf})
		require.NoError(t, err)
		defer logger.Close()

		logger.Info().Str("agent_id", "coder").Msg("hello")
		logger.Debug().Msg("hidden")

		assert.Contains(t, buf.String(), `"agent_id":"coder"`)
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("file output without rotation", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "test.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)
		logger.Info().Msg("test message")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "test message")
	})

	t.Run("rotating file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		logger, err := New(Config{Level: "info", File: logFile, MaxSize: 1})
		require.NoError(t, err)
		_, ok := logger.file.(*RotatingWriter)
		assert.True(t, ok)
		require.NoError(t, logger.Close())
	})

	t.Run("redaction", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Output: &buf, Redaction: true})
		require.NoError(t, err)
		defer logger.Close()
		require.NotNil(t, logger.redactor)

		logger.Info().Str("key", "sk-ant-REDACTED").Msg("loaded profile")

		assert.Contains(t, buf.String(), "[REDACTED]")
		assert.NotContains(t, buf.String(), "abcdefghijklmnop")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "loud"})
		require.NoError(t, err)
		defer logger.Close()
		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})
}

func TestNewSetsGlobalLogger(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Console: true, Output: &buf})
	require.NoError(t, err)
	defer logger.Close()

	log.Warn().Msg("from global")
	assert.Contains(t, buf.String(), "from global")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Console: true, Output: &buf})
	require.NoError(t, err)
	defer logger.Close()

	child := logger.Component("gateway")
	child.Info().Msg("ready")
	assert.Contains(t, buf.String(), `"component":"gateway"`)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}
