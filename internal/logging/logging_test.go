package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var linePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} - (INFO|WARN|ERROR|DEBUG) - `)

func TestNewWritesFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scraping.log")
	var console bytes.Buffer

	logger, err := newWithConsole(path, "info", &console)
	require.NoError(t, err)

	logger.Info("Page loaded successfully")
	logger.Warn("Cloudflare protection may still be active", zap.String("url", "https://www.metal-archives.com/"))
	logger.Debug("not written at info level")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Regexp(t, linePattern, line)
	}
	assert.Contains(t, lines[0], "INFO - Page loaded successfully")
	assert.Contains(t, lines[1], "WARN - Cloudflare protection may still be active")
	assert.Contains(t, lines[1], "https://www.metal-archives.com/")

	assert.Equal(t, string(data), console.String())
	assert.Equal(t, path, logger.Path())
}

func TestNewAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraping.log")

	for _, msg := range []string{"first run", "second run"} {
		logger, err := newWithConsole(path, "info", &bytes.Buffer{})
		require.NoError(t, err)
		logger.Info(msg)
		require.NoError(t, logger.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first run")
	assert.Contains(t, string(data), "second run")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := newWithConsole(filepath.Join(t.TempDir(), "x.log"), "loud", &bytes.Buffer{})
	assert.Error(t, err)
}
