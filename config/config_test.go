package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
samp:
  host: game.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/presence.db", cfg.Database.DSN)
	assert.Equal(t, 60*time.Second, cfg.Poller.Delay)
	assert.Equal(t, 10*time.Second, cfg.Poller.QueryTimeout)
	assert.Equal(t, 7777, cfg.Samp.Port)
	assert.Equal(t, 45*time.Minute, cfg.Sessions.PlayerThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.WorldThreshold)
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, "Europe/Moscow", cfg.Roster.Timezone)
	assert.Equal(t, 7*24*time.Hour, cfg.Roster.Interval)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, "UTC", cfg.Telegram.Timezone)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
poller:
  delay_seconds: 30
sessions:
  player_threshold_seconds: 600
  world_threshold_seconds: 300
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Poller.Delay)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.PlayerThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.WorldThreshold)
}

func TestLoadTelegramRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
telegram:
  enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot_token")
}

func TestLoadRosterRequiresBaseURL(t *testing.T) {
	path := writeConfig(t, `
roster:
  enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
