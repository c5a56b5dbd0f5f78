package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "print-payloads", cfg.Storage.Bucket)
	assert.Equal(t, 30, cfg.Cleanup.RetentionDays)
	assert.Equal(t, 24*time.Hour, cfg.Cleanup.Interval)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, "lp", cfg.Worker.LpPath)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
storage:
  bucket: custom-bucket
cleanup:
  retention_days: 7
webhooks:
  urls:
    - http://hooks.example.com/print
  secret: shh
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "custom-bucket", cfg.Storage.Bucket)
	assert.Equal(t, 7, cfg.Cleanup.RetentionDays)
	assert.Equal(t, []string{"http://hooks.example.com/print"}, cfg.Webhooks.URLs)
	assert.Equal(t, "shh", cfg.Webhooks.Secret)

	// Unset fields keep their defaults.
	assert.Equal(t, "lp", cfg.Worker.LpPath)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PRINTRELAY_PORT", "7070")
	t.Setenv("PRINTRELAY_DB_PATH", "/tmp/other.db")
	t.Setenv("PRINTRELAY_API_KEY", "secret-key")
	t.Setenv("PRINTRELAY_RETENTION_DAYS", "14")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "secret-key", cfg.Auth.APIKey)
	assert.Equal(t, 14, cfg.Cleanup.RetentionDays)
}

func TestValidate(t *testing.T) {
	base := func() *Config { return defaults() }

	cfg := base()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.Path = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Bucket = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Cleanup.BatchSize = 0
	assert.Error(t, cfg.Validate())

	assert.NoError(t, base().Validate())
}
