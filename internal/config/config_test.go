package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "insight.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "expected default config file to be written")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, "http://localhost:5000/api/upload", cfg.Analysis.EndpointURL)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.GetUploadDir())
}

func TestLoadConfig_ReadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "insight.yaml")
	content := `
server:
  port: 9100
  bind_address: 127.0.0.1
analysis:
  endpoint_url: https://analysis.example.com/api/upload
  timeout_seconds: 15
  allowed_extensions: ".csv, TSV"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.GetServerAddr())
	assert.Equal(t, "https://analysis.example.com/api/upload", cfg.Analysis.EndpointURL)
	assert.Equal(t, int64(15), int64(cfg.AnalysisTimeout().Seconds()))
	assert.Equal(t, []string{".csv", ".tsv"}, cfg.AllowedExtensions())
	// Unset sections keep their defaults
	assert.Equal(t, 20, cfg.Storage.RecentFilesLimit)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "insight.yaml")

	t.Setenv("INSIGHT_PORT", "7001")
	t.Setenv("INSIGHT_ANALYSIS_URL", "http://upstream:5000/api/upload")
	t.Setenv("INSIGHT_ANALYSIS_TIMEOUT", "45s")
	t.Setenv("INSIGHT_LOG_LEVEL", "DEBUG")
	dataDir := filepath.Join(dir, "elsewhere")
	t.Setenv("INSIGHT_DATA_DIR", dataDir)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "http://upstream:5000/api/upload", cfg.Analysis.EndpointURL)
	assert.Equal(t, 45, cfg.Analysis.TimeoutSeconds)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.Equal(t, dataDir, cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dataDir, "uploads"), cfg.GetUploadDir())
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("invalid endpoint url", func(t *testing.T) {
		path := filepath.Join(dir, "badurl.yaml")
		require.NoError(t, os.WriteFile(path, []byte("analysis:\n  endpoint_url: not a url\n"), 0644))
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "invalid configuration")
	})
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.DataDirectory = filepath.Join(dir, "data")
	cfg.Storage.UploadsDirectory = filepath.Join(dir, "data", "uploads")

	require.NoError(t, cfg.EnsureDirectories())

	info, err := os.Stat(cfg.GetUploadDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileRetention(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 24*time.Hour, cfg.FileRetention())

	cfg.Storage.FileRetentionHours = 0
	assert.Zero(t, cfg.FileRetention())

	cfg.Storage.FileRetentionHours = -1
	assert.Error(t, cfg.Validate())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "key=value")
}
