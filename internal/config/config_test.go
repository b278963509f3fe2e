package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rumbo.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// clearEnv neutralises variables a developer may have exported.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"RUMBO_CONFIG_FILE", "RUMBO_MODE", "RUMBO_USE_MOCK_LLM", "RUMBO_USE_VERTEX",
		"RUMBO_LLM_TIMEOUT", "RUMBO_LOCATION_MAX_AGE", "RUMBO_PORT", "PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.True(t, cfg.LLM.UseMock)
	assert.Equal(t, 20.0, cfg.Location.MinDistanceMeters)
	assert.Equal(t, 60*time.Second, cfg.Location.MaxAge)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
port = "9090"
log_format = "text"

[llm]
use_mock = true
timeout = "15s"
requests_per_minute = 10

[location]
min_distance_meters = 35.5
max_age = "2m"

[session]
idle_ttl = "1h"
`)
	clearEnv(t)
	t.Setenv("RUMBO_LLM_TIMEOUT", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 10, cfg.LLM.RequestsPerMinute)
	assert.Equal(t, 35.5, cfg.Location.MinDistanceMeters)
	assert.Equal(t, 2*time.Minute, cfg.Location.MaxAge)
	assert.Equal(t, time.Hour, cfg.Session.IdleTTL)
}

func TestLoad_UnknownKey(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `prot = "1"`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_GCPNeedsCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("RUMBO_MODE", "gcp")
	t.Setenv("RUMBO_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)

	t.Setenv("RUMBO_GEMINI_API_KEY", "k")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.LLM.UseMock)

	t.Setenv("RUMBO_USE_VERTEX", "1")
	t.Setenv("RUMBO_GCP_PROJECT", "")
	_, err = Load("")
	require.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("RUMBO_LOCATION_MAX_AGE", "soon")

	_, err := Load("")
	require.Error(t, err)
}
