package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithPath(t *testing.T) {
	t.Run("StderrDefault", func(t *testing.T) {
		result := NewLoggerWithPath(Config{Level: "debug"})
		assert.False(t, result.UsingFile)
		assert.False(t, result.FallbackUsed)
		assert.Equal(t, zerolog.DebugLevel, result.Logger.GetLevel())
		require.NoError(t, result.Close())
	})

	t.Run("InvalidLevelDefaultsToInfo", func(t *testing.T) {
		result := NewLoggerWithPath(Config{Level: "shouty"})
		assert.Equal(t, zerolog.InfoLevel, result.Logger.GetLevel())
	})

	t.Run("FileOutput", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "logs", "forge.log")
		result := NewLoggerWithPath(Config{
			Level:  "info",
			Output: OutputFile,
			File:   logPath,
		})
		require.True(t, result.UsingFile)
		assert.Equal(t, logPath, result.FilePath)

		result.Logger.Info().Msg("hello")
		require.NoError(t, result.Close())

		assert.FileExists(t, logPath)
	})

	t.Run("FileFallback", func(t *testing.T) {
		result := NewLoggerWithPath(Config{
			Level:  "info",
			Output: OutputFile,
			File:   "",
		})
		assert.False(t, result.UsingFile)
		assert.True(t, result.FallbackUsed)
		assert.NotEmpty(t, result.FallbackReason)
	})

	t.Run("CloseWithoutFile", func(t *testing.T) {
		result := NewLoggerWithPath(Config{})
		assert.NoError(t, result.Close())
		assert.NoError(t, result.Close())
	})
}

func TestFromContext(t *testing.T) {
	t.Run("AttachedLogger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		ctx := WithContext(context.Background(), logger)

		FromContext(ctx).Info().Msg("attached")
		assert.Contains(t, buf.String(), "attached")
	})

	t.Run("MissingLoggerIsSafe", func(t *testing.T) {
		log := FromContext(context.Background())
		log.Info().Msg("dropped")
	})
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := ComponentLogger(zerolog.New(&buf), "engine")
	logger.Info().Msg("scoped")

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "engine", event["component"])
}

func TestPrintMessages(t *testing.T) {
	var buf bytes.Buffer
	PrintLogPathMessage(&buf, "/tmp/forge.log")
	assert.Contains(t, buf.String(), "/tmp/forge.log")

	buf.Reset()
	PrintFallbackWarning(&buf, "permission denied")
	assert.True(t, strings.HasPrefix(buf.String(), "Warning:"))
	assert.Contains(t, buf.String(), "permission denied")
}
