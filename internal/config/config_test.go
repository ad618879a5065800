package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every XDG lookup at a temp dir so the developer's real
// config never leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8081/api", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.Sync.RetryAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 168*time.Hour, cfg.Session.InviteExpiration)
	assert.Equal(t, filepath.Join(dir, "data", "depplan"), cfg.DataDir)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config", "depplan", "config.yaml"), `
api:
  base_url: https://planner.example.com/api
  timeout: 30s
sync:
  retry_attempts: 5
log:
  level: debug
`)
	t.Setenv("DEPPLAN_SYNC_RETRY_ATTEMPTS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://planner.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 7, cfg.Sync.RetryAttempts, "env overrides file")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
}

func TestLoadBadEnv(t *testing.T) {
	isolate(t)
	t.Setenv("DEPPLAN_API_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEPPLAN_API_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "relative url", mutate: func(c *Config) { c.API.BaseURL = "/api" }, wantErr: "absolute URL"},
		{name: "ftp scheme", mutate: func(c *Config) { c.API.BaseURL = "ftp://host/api" }, wantErr: "scheme"},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, wantErr: "timeout"},
		{name: "zero rps", mutate: func(c *Config) { c.API.RequestsPerSecond = 0 }, wantErr: "requests per second"},
		{name: "zero burst", mutate: func(c *Config) { c.API.Burst = 0 }, wantErr: "burst"},
		{name: "negative attempts", mutate: func(c *Config) { c.Sync.RetryAttempts = -1 }, wantErr: "attempts"},
		{name: "max below base", mutate: func(c *Config) { c.Sync.RetryMaxDelay = time.Millisecond }, wantErr: "below base"},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log level"},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log format"},
		{name: "short invite", mutate: func(c *Config) { c.Session.InviteExpiration = time.Minute }, wantErr: "invite"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("DEPPLAN_TEST_INT", "12")
	t.Setenv("DEPPLAN_TEST_FLOAT", "2.5")
	t.Setenv("DEPPLAN_TEST_BAD", "x")

	n, err := getEnvInt("DEPPLAN_TEST_INT", 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	f, err := getEnvFloat("DEPPLAN_TEST_FLOAT", 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f, 0.0001)

	_, err = getEnvInt("DEPPLAN_TEST_BAD", 0)
	assert.Error(t, err)

	assert.Equal(t, "fallback", getEnv("DEPPLAN_TEST_UNSET", "fallback"))
}
