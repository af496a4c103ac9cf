package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 16, cfg.DB.MaxOpenConns)
	assert.Equal(t, 10000, cfg.Store.QueryLimit)
	assert.Equal(t, 999, cfg.Store.DeleteLimit)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, time.Minute, cfg.Stats.Interval)
	assert.Empty(t, cfg.Tracing.LicenseKey)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
environment: production
database:
  dsn: postgres://eventlog:secret@db:5432/events
  max_open_conns: 8
store:
  query_limit: 500
redis:
  enabled: true
  ttl: 30s
`), 0o600))

	cfg, err := LoadConfig(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "postgres://eventlog:secret@db:5432/events", cfg.DB.DSN)
	assert.Equal(t, 8, cfg.DB.MaxOpenConns)
	assert.Equal(t, 500, cfg.Store.QueryLimit)
	assert.Equal(t, 999, cfg.Store.DeleteLimit)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("EVENTLOG_DATABASE_DSN", "postgres://env@localhost/events")
	t.Setenv("EVENTLOG_STORE_DELETE_LIMIT", "50")
	t.Setenv("EVENTLOG_TRACING_LICENSE_KEY", "license")

	cfg, err := LoadConfig(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env@localhost/events", cfg.DB.DSN)
	assert.Equal(t, 50, cfg.Store.DeleteLimit)
	assert.Equal(t, "license", cfg.Tracing.LicenseKey)
}

func TestLoadConfigExplicitFileMissing(t *testing.T) {
	_, err := LoadConfig(".", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir(), "")
	require.NoError(t, err)

	bad := cfg
	bad.DB.DSN = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Store.QueryLimit = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.DB.MaxOpenConns = -1
	assert.Error(t, bad.Validate())
}
