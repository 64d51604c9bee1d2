package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DK_STORE__SPREADSHEET_ID", "sheet-123")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, "Europe/Moscow", cfg.Timezone)
	assert.Equal(t, 5*time.Minute, cfg.Cache.RefreshInterval)
	assert.Equal(t, 15*time.Minute, cfg.Cache.MaxAge)
	assert.Equal(t, 30*time.Minute, cfg.Reminder.GroupDelay)
	assert.Equal(t, 2*time.Hour, cfg.Reminder.InitiatorDelay)
	assert.Equal(t, 3, cfg.Report.TopReasons)
	assert.Equal(t, "sheet-123", cfg.Store.SpreadsheetID)
	assert.NotEmpty(t, cfg.Topology.Sites)
	assert.NotEmpty(t, cfg.Topology.Reasons)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9999"
log:
  level: debug
  format: text
store:
  spreadsheet_id: from-file
  worksheet: Custom
cache:
  refresh_interval: 1m
reminder:
  group_delay: 45m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-file", cfg.Store.SpreadsheetID)
	assert.Equal(t, "Custom", cfg.Store.Worksheet)
	assert.Equal(t, time.Minute, cfg.Cache.RefreshInterval)
	assert.Equal(t, 45*time.Minute, cfg.Reminder.GroupDelay)
	// Untouched sections keep their defaults.
	assert.Equal(t, 2*time.Hour, cfg.Reminder.InitiatorDelay)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  spreadsheet_id: from-file
`), 0o600))

	t.Setenv("DK_STORE__SPREADSHEET_ID", "from-env")
	t.Setenv("DK_LOG__LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Store.SpreadsheetID)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("missing spreadsheet id", func(t *testing.T) {
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("DK_STORE__SPREADSHEET_ID", "sheet-123")
		t.Setenv("DK_LOG__LEVEL", "loud")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yaml")
		assert.Error(t, err)
	})
}
