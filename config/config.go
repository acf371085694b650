// Package config loads meetctl settings: defaults, then the TOML file, then
// MEETCTL_* environment variables. Flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DotenvFile is read from the working directory when present. Variables
// already in the environment win over its values.
const DotenvFile = ".env"

const (
	DefaultServer            = "http://localhost:5000"
	DefaultChannelPath       = "/ws"
	DefaultReconnectInterval = 2 * time.Second
)

type Config struct {
	Server            string
	ChannelPath       string
	LogPath           string
	RequestTimeout    time.Duration // zero: requests never time out
	ReconnectInterval time.Duration // zero: no redial after a drop
	TranscriptLimit   int           // zero: keep every entry
}

type fileConfig struct {
	Server            string `toml:"server"`
	ChannelPath       string `toml:"channel_path"`
	LogPath           string `toml:"log_path"`
	RequestTimeout    string `toml:"request_timeout"`
	ReconnectInterval string `toml:"reconnect_interval"`
	TranscriptLimit   *int   `toml:"transcript_limit"`
}

func Default() *Config {
	return &Config{
		Server:            DefaultServer,
		ChannelPath:       DefaultChannelPath,
		ReconnectInterval: DefaultReconnectInterval,
	}
}

// Load reads the file at path, or the default location when path is empty,
// then the environment (including DotenvFile). A missing default file is not
// an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = FilePath()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := godotenv.Load(DotenvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", DotenvFile, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	if fc.Server != "" {
		c.Server = fc.Server
	}
	if fc.ChannelPath != "" {
		c.ChannelPath = fc.ChannelPath
	}
	if fc.LogPath != "" {
		c.LogPath = expandTilde(fc.LogPath)
	}
	if fc.RequestTimeout != "" {
		d, err := time.ParseDuration(fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("config %s: request_timeout: %w", path, err)
		}
		c.RequestTimeout = d
	}
	if fc.ReconnectInterval != "" {
		d, err := time.ParseDuration(fc.ReconnectInterval)
		if err != nil {
			return fmt.Errorf("config %s: reconnect_interval: %w", path, err)
		}
		c.ReconnectInterval = d
	}
	if fc.TranscriptLimit != nil {
		c.TranscriptLimit = *fc.TranscriptLimit
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MEETCTL_SERVER"); v != "" {
		c.Server = v
	}
	if v := os.Getenv("MEETCTL_CHANNEL_PATH"); v != "" {
		c.ChannelPath = v
	}
	if v := os.Getenv("MEETCTL_LOG_PATH"); v != "" {
		c.LogPath = expandTilde(v)
	}
	if v := os.Getenv("MEETCTL_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MEETCTL_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("MEETCTL_RECONNECT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MEETCTL_RECONNECT_INTERVAL: %w", err)
		}
		c.ReconnectInterval = d
	}
	if v := os.Getenv("MEETCTL_TRANSCRIPT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEETCTL_TRANSCRIPT_LIMIT: %w", err)
		}
		c.TranscriptLimit = n
	}
	return nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server %q: scheme must be http or https", c.Server)
	}
	if u.Host == "" {
		return fmt.Errorf("server %q: missing host", c.Server)
	}
	if c.RequestTimeout < 0 {
		return errors.New("request_timeout must not be negative")
	}
	if c.ReconnectInterval < 0 {
		return errors.New("reconnect_interval must not be negative")
	}
	if c.TranscriptLimit < 0 {
		return errors.New("transcript_limit must not be negative")
	}
	return nil
}

// FilePath returns the default config file location, or "" when no home
// directory can be found.
func FilePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "meetctl", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "meetctl", "config.toml")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
