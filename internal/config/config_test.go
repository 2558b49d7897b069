package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("BUYNOW_TEST_URL", "https://api.example.test/")
	dbPath := filepath.Join(t.TempDir(), "state", "buynow.db")

	path := writeConfig(t, `
api:
  base_url: ${BUYNOW_TEST_URL}
  timeout_seconds: 3
  cache_ttl_seconds: 30
storage:
  driver: SQLite
  path: `+dbPath+`
watch:
  interval_seconds: 15
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test", cfg.API.BaseURL)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 3*time.Second, cfg.APITimeout())
	assert.Equal(t, 30*time.Second, cfg.CacheTTL())
	assert.Equal(t, 15*time.Second, cfg.WatchInterval())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: http://localhost:8000\nstorage:\n  driver: memory\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.APITimeout())
	assert.Zero(t, cfg.CacheTTL())
	assert.Equal(t, time.Minute, cfg.WatchInterval())
	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.OAuth2Enabled())
}

func TestLoad_OAuth2Identity(t *testing.T) {
	t.Setenv("BUYNOW_TEST_REFRESH", "1//refresh")
	path := writeConfig(t, `
api:
  base_url: http://localhost:8000
storage:
  driver: memory
identity:
  oauth2:
    client_id: client
    client_secret: secret
    token_url: https://oauth2.example.test/token
    refresh_token: ${BUYNOW_TEST_REFRESH}
    scopes: [openid, email]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.OAuth2Enabled())
	assert.Equal(t, "1//refresh", cfg.Identity.OAuth2.RefreshToken)
	assert.Equal(t, []string{"openid", "email"}, cfg.Identity.OAuth2.Scopes)
}

func TestLoad_EnvPath(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: http://env\nstorage:\n  driver: memory\n")
	t.Setenv(PathEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://env", cfg.API.BaseURL)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"missing base url": "storage:\n  driver: memory\n",
		"unknown driver":   "api:\n  base_url: http://x\nstorage:\n  driver: etcd\n",
		"bad yaml":         "api: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
