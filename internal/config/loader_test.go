package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".tether"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ".tether", "config.yaml"), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultServerURL, cfg.Server.URL)
		assert.Equal(t, DefaultEventCapacity, cfg.Events.Capacity)
		assert.Equal(t, 500*time.Millisecond, cfg.Backoff.Base())
		assert.Equal(t, 30*time.Second, cfg.Backoff.Cap())
		assert.Equal(t, 10*time.Second, cfg.Command.Timeout())
	})

	t.Run("file values override defaults", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, `
server:
  url: wss://agent.example.com/ws
  token_env: MY_TOKEN
backoff:
  base_ms: 250
  cap_ms: 5000
command:
  timeout_seconds: 30
events:
  capacity: 500
`)
		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "wss://agent.example.com/ws", cfg.Server.URL)
		assert.Equal(t, "MY_TOKEN", cfg.Server.TokenEnv)
		assert.Equal(t, 250*time.Millisecond, cfg.Backoff.Base())
		assert.Equal(t, 5*time.Second, cfg.Backoff.Cap())
		assert.Equal(t, 30*time.Second, cfg.Command.Timeout())
		assert.Equal(t, 500, cfg.Events.Capacity)
	})

	t.Run("partial file keeps remaining defaults", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "server:\n  url: ws://10.0.0.5:9000/ws\n")
		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "ws://10.0.0.5:9000/ws", cfg.Server.URL)
		assert.Equal(t, DefaultEventCapacity, cfg.Events.Capacity)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "server: [not a mapping")
		_, err := Load(dir)
		assert.Error(t, err)
	})

	t.Run("rejects non-websocket URL", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "server:\n  url: http://example.com\n")
		_, err := Load(dir)
		require.Error(t, err)
		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "server.url", verr.Field)
	})

	t.Run("rejects cap below base", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "backoff:\n  base_ms: 1000\n  cap_ms: 100\n")
		_, err := Load(dir)
		require.Error(t, err)
		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "backoff.cap_ms", verr.Field)
	})
}

func TestToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.TokenEnv = "TETHER_TEST_TOKEN"
	t.Setenv("TETHER_TEST_TOKEN", "secret-123")
	assert.Equal(t, "secret-123", cfg.Token())

	cfg.Server.TokenEnv = "TETHER_TEST_TOKEN_UNSET"
	assert.Empty(t, cfg.Token())
}
