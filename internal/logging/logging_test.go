package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesToStderrAndFile(t *testing.T) {
	var stderr bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "nested", "carousel.log")

	logger, cleanup, err := setup(&stderr, logFile, slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("deck built", "slides", 4)
	logger.Debug("hidden")
	cleanup()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, stderr.String(), string(data))

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "deck built", entry["msg"])
	assert.Equal(t, float64(4), entry["slides"])
}

func TestSetup_AppendsToExistingFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "carousel.log")
	require.NoError(t, os.WriteFile(logFile, []byte("{\"msg\":\"earlier\"}\n"), 0o644))

	logger, cleanup, err := setup(&bytes.Buffer{}, logFile, slog.LevelInfo)
	require.NoError(t, err)
	logger.Info("later")
	cleanup()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\"msg\":\"earlier\"}\n"))
	assert.Contains(t, string(data), "later")
}

func TestSetup_StderrOnly(t *testing.T) {
	var stderr bytes.Buffer
	logger, cleanup, err := setup(&stderr, "", slog.LevelWarn)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("dropped")
	logger.Warn("kept")
	assert.NotContains(t, stderr.String(), "dropped")
	assert.Contains(t, stderr.String(), "kept")
}

func TestSetup_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, _, err := setup(&bytes.Buffer{}, filepath.Join(blocker, "carousel.log"), slog.LevelInfo)
	require.Error(t, err)
}
