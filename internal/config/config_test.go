package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
sensu:
  base_url: "http://sensu.local:4567"
puppetdb:
  base_url: "http://puppetdb.local:8080"
crowd:
  base_url: "https://crowd.local/crowd"
  application: "orchestrate"
  password: "secret"
cookie:
  secret: "0123456789abcdef0123"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.HTTP.Listen)
	assert.Equal(t, "public", cfg.HTTP.StaticDir)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 15*time.Second, cfg.Metrics.FlushInterval)
	assert.Equal(t, 25, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 50, cfg.RateLimit.Burst)
	assert.Equal(t, 10*time.Second, cfg.Sensu.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Crowd.Timeout)
}

func TestLoadFileValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
http:
  listen: ":8080"
sensu_timeout_override: ignored
log:
  level: "debug"
  format: "text"
metrics:
  flush_interval: 30s
`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 30*time.Second, cfg.Metrics.FlushInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_LISTEN", ":9999")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Listen)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsMissingUpstreams(t *testing.T) {
	_, err := Load(writeConfig(t, `
cookie:
  secret: "0123456789abcdef0123"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sensu.base_url")
}

func TestLoadRejectsShortCookieSecret(t *testing.T) {
	_, err := Load(writeConfig(t, `
sensu:
  base_url: "http://sensu.local:4567"
puppetdb:
  base_url: "http://puppetdb.local:8080"
crowd:
  base_url: "https://crowd.local/crowd"
cookie:
  secret: "short"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cookie.secret")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
