package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MEETCTL_SERVER", "MEETCTL_CHANNEL_PATH", "MEETCTL_LOG_PATH",
		"MEETCTL_REQUEST_TIMEOUT", "MEETCTL_RECONNECT_INTERVAL", "MEETCTL_TRANSCRIPT_LIMIT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultServer, cfg.Server)
	assert.Equal(t, DefaultChannelPath, cfg.ChannelPath)
	assert.Equal(t, DefaultReconnectInterval, cfg.ReconnectInterval)
	assert.Zero(t, cfg.RequestTimeout)
	assert.Zero(t, cfg.TranscriptLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
server = "https://meet.example.com"
channel_path = "/socket"
log_path = "/var/log/meetctl"
request_timeout = "15s"
reconnect_interval = "500ms"
transcript_limit = 200
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://meet.example.com", cfg.Server)
	assert.Equal(t, "/socket", cfg.ChannelPath)
	assert.Equal(t, "/var/log/meetctl", cfg.LogPath)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectInterval)
	assert.Equal(t, 200, cfg.TranscriptLimit)
}

func TestReconnectZeroInFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeFile(t, `reconnect_interval = "0s"`))
	require.NoError(t, err)
	assert.Zero(t, cfg.ReconnectInterval)
}

func TestDefaultFileLocation(t *testing.T) {
	clearEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "meetctl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "meetctl", "config.toml"), []byte(`server = "http://10.0.0.2:8000"`), 0o644))

	assert.Equal(t, filepath.Join(xdg, "meetctl", "config.toml"), FilePath())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8000", cfg.Server)
}

func TestExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBadFile(t *testing.T) {
	clearEnv(t)
	for name, body := range map[string]string{
		"syntax":   `server = `,
		"duration": `request_timeout = "soon"`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `server = "http://file:1"`)
	t.Setenv("MEETCTL_SERVER", "http://env:2")
	t.Setenv("MEETCTL_REQUEST_TIMEOUT", "3s")
	t.Setenv("MEETCTL_TRANSCRIPT_LIMIT", "10")
	t.Setenv("MEETCTL_LOG_PATH", "~/logs")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env:2", cfg.Server)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10, cfg.TranscriptLimit)
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "logs"), cfg.LogPath)
}

func TestDotenv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotenvFile), []byte("MEETCTL_CHANNEL_PATH=/from-dotenv\nMEETCTL_SERVER=http://dotenv:1\n"), 0o644))
	t.Chdir(dir)
	os.Unsetenv("MEETCTL_CHANNEL_PATH")
	t.Setenv("MEETCTL_SERVER", "http://env:2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from-dotenv", cfg.ChannelPath)
	assert.Equal(t, "http://env:2", cfg.Server, "the real environment wins")
}

func TestBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEETCTL_TRANSCRIPT_LIMIT", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"https", func(c *Config) { c.Server = "https://x.io" }, false},
		{"no scheme", func(c *Config) { c.Server = "localhost:5000" }, true},
		{"ws scheme", func(c *Config) { c.Server = "ws://x.io" }, true},
		{"no host", func(c *Config) { c.Server = "http://" }, true},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, true},
		{"negative reconnect", func(c *Config) { c.ReconnectInterval = -time.Second }, true},
		{"negative limit", func(c *Config) { c.TranscriptLimit = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
