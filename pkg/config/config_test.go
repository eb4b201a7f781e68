package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "sessions.txt", cfg.Sessions.File)
	assert.Equal(t, 120*time.Second, cfg.Sessions.RotateInterval)
	assert.Equal(t, 8, cfg.Harvest.SeenStreakStop)
	assert.Equal(t, 2, cfg.Harvest.ItemRetries)
	assert.Equal(t, 6, cfg.Harvest.ProfileRetries)
	assert.Equal(t, 4, cfg.Harvest.ProbeRetries)
	assert.Equal(t, 120*time.Second, cfg.Harvest.ProfileBackoffBase)
	assert.Equal(t, 480*time.Second, cfg.Harvest.ProfileBackoffCap)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
sessions:
  file: /etc/autoinsta/sessions.txt
  rotate_interval: 90s
output:
  base_directory: /srv/harvest
  ledger_root: /srv/media_log
harvest:
  seen_streak_stop: 12
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "/etc/autoinsta/sessions.txt", cfg.Sessions.File)
	assert.Equal(t, 90*time.Second, cfg.Sessions.RotateInterval)
	assert.Equal(t, "/srv/harvest", cfg.Output.BaseDirectory)
	assert.Equal(t, "/srv/media_log", cfg.Output.LedgerRoot)
	assert.Equal(t, 12, cfg.Harvest.SeenStreakStop)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched values keep their defaults.
	assert.Equal(t, 2, cfg.Harvest.ItemRetries)
}

func TestLoadFromFileMissingIsError(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AUTOINSTA_SESSIONS_FILE", "/tmp/sessions.txt")
	t.Setenv("AUTOINSTA_ROTATE_INTERVAL", "45")
	t.Setenv("AUTOINSTA_OUTPUT_DIR", "/tmp/out")
	t.Setenv("AUTOINSTA_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/sessions.txt", cfg.Sessions.File)
	assert.Equal(t, 45*time.Second, cfg.Sessions.RotateInterval)
	assert.Equal(t, "/tmp/out", cfg.Output.BaseDirectory)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults are valid", func(c *Config) {}, true},
		{"empty sessions file", func(c *Config) { c.Sessions.File = "" }, false},
		{"rotate interval too short", func(c *Config) { c.Sessions.RotateInterval = time.Second }, false},
		{"zero streak stop", func(c *Config) { c.Harvest.SeenStreakStop = 0 }, false},
		{"cap below base", func(c *Config) { c.Harvest.ItemBackoffCap = time.Second }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, false},
		{"zero probe retries", func(c *Config) { c.Harvest.ProbeRetries = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
