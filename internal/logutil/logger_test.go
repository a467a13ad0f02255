// internal/logutil/logger_test.go
package logutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "serialhelper.log")

	logger, err := New(Config{
		Level:  "debug",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"level":"info"`)
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered.log")

	logger, err := New(Config{Level: "error", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Error("kept")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestConsole(t *testing.T) {
	assert.False(t, Console(false).Core().Enabled(zapcore.DebugLevel))
	assert.True(t, Console(true).Core().Enabled(zapcore.DebugLevel))
}
