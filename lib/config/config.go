// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the keyrelay daemon.
type Config struct {
	// Upstream configures the agent endpoint that accepted sessions
	// are forwarded to.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Control configures the local status/control socket.
	Control ControlConfig `yaml:"control"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// UpstreamConfig configures the upstream agent connection.
type UpstreamConfig struct {
	// Target is the upstream agent endpoint: a Unix socket path, or a
	// named pipe path on Windows. Default: the value of SSH_AUTH_SOCK
	// at startup.
	Target string `yaml:"target"`

	// DialTimeout is how long a session waits for the upstream agent
	// to answer, as a Go duration string. Default: 5s
	DialTimeout string `yaml:"dial_timeout"`
}

// ControlConfig configures the control socket.
type ControlConfig struct {
	// SocketPath is the Unix socket path for status queries.
	// Default: <runtime dir>/keyrelay/control.sock
	SocketPath string `yaml:"socket_path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is the minimum slog level: debug, info, warn, or error.
	// Default: info. The daemon's --verbose flag forces debug.
	Level string `yaml:"level"`
}

// Default returns the default configuration. These defaults are a
// usable development setup: forward to the agent named by
// SSH_AUTH_SOCK, control socket under the user runtime directory.
func Default() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			Target:      os.Getenv("SSH_AUTH_SOCK"),
			DialTimeout: "5s",
		},
		Control: ControlConfig{
			SocketPath: filepath.Join(runtimeDir(), "keyrelay", "control.sock"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// runtimeDir returns the per-user runtime directory: XDG_RUNTIME_DIR
// when set, otherwise a UID-scoped directory under /tmp.
func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("keyrelay-%d", os.Getuid()))
}

// Load loads configuration from the KEYRELAY_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults — if KEYRELAY_CONFIG is not set,
// this fails. This ensures deterministic, auditable configuration with
// no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("KEYRELAY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("KEYRELAY_CONFIG environment variable not set; " +
			"set it to the path of your keyrelay.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${HOME} and similar environment references
// in path fields.
func (c *Config) expandVariables() {
	c.Upstream.Target = os.ExpandEnv(c.Upstream.Target)
	c.Control.SocketPath = os.ExpandEnv(c.Control.SocketPath)
}

// Validate checks field values that have a constrained vocabulary or
// format. Upstream.Target is deliberately not required here — the
// daemon reports its absence with a clearer message at startup.
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if _, err := c.UpstreamDialTimeout(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Log.Level into a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", c.Log.Level)
	}
}

// UpstreamDialTimeout parses Upstream.DialTimeout into a duration.
func (c *Config) UpstreamDialTimeout() (time.Duration, error) {
	if c.Upstream.DialTimeout == "" {
		return 5 * time.Second, nil
	}
	timeout, err := time.ParseDuration(c.Upstream.DialTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid upstream dial_timeout %q: %w", c.Upstream.DialTimeout, err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("upstream dial_timeout must be positive, got %q", c.Upstream.DialTimeout)
	}
	return timeout, nil
}
