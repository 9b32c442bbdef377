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

func TestLoad_RequiresWebhookURL(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook URL")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APPFORGE_WEBHOOK_URL", "https://workflows.example/webhook/generate-app")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, 90*time.Second, cfg.GenerateTimeout)
	assert.Equal(t, 10*time.Second, cfg.RunTimeout)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
	assert.Equal(t, DefaultMaxCodeBytes, cfg.MaxCodeBytes)
	assert.Equal(t, DefaultRequestsPerMinute, cfg.RequestsPerMinute)
	assert.False(t, cfg.Debug)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9000"
webhook_url: "https://workflows.example/webhook/generate-app"
generate_timeout: "2m"
run_timeout: "5s"
session_ttl: "1h"
max_code_bytes: 1024
requests_per_minute: 10
debug: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 2*time.Minute, cfg.GenerateTimeout)
	assert.Equal(t, 5*time.Second, cfg.RunTimeout)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 1024, cfg.MaxCodeBytes)
	assert.Equal(t, 10, cfg.RequestsPerMinute)
	assert.True(t, cfg.Debug)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
webhook_url: "https://file.example/webhook"
generate_timeout: "2m"
`)
	t.Setenv("APPFORGE_WEBHOOK_URL", "https://env.example/webhook")
	t.Setenv("APPFORGE_GENERATE_TIMEOUT", "30s")
	t.Setenv("APPFORGE_REQUESTS_PER_MINUTE", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example/webhook", cfg.WebhookURL)
	assert.Equal(t, 30*time.Second, cfg.GenerateTimeout)
	assert.Equal(t, 7, cfg.RequestsPerMinute)
}

func TestLoad_BadValues(t *testing.T) {
	t.Setenv("APPFORGE_WEBHOOK_URL", "https://workflows.example/webhook")

	t.Run("bad duration in file", func(t *testing.T) {
		path := writeConfig(t, "run_timeout: \"soon\"\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad duration in env", func(t *testing.T) {
		t.Setenv("APPFORGE_RUN_TIMEOUT", "whenever")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad int in env", func(t *testing.T) {
		t.Setenv("APPFORGE_MAX_CODE_BYTES", "lots")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
