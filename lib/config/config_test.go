// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Log.Level != "info" {
		t.Errorf("expected log level=info, got %s", cfg.Log.Level)
	}
	if cfg.Upstream.DialTimeout != "5s" {
		t.Errorf("expected dial_timeout=5s, got %s", cfg.Upstream.DialTimeout)
	}
	if !strings.HasSuffix(cfg.Control.SocketPath, filepath.Join("keyrelay", "control.sock")) {
		t.Errorf("unexpected control socket path: %s", cfg.Control.SocketPath)
	}
}

func TestLoad_RequiresKeyrelayConfig(t *testing.T) {
	// Save and restore KEYRELAY_CONFIG.
	origConfig := os.Getenv("KEYRELAY_CONFIG")
	defer os.Setenv("KEYRELAY_CONFIG", origConfig)

	os.Unsetenv("KEYRELAY_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when KEYRELAY_CONFIG is unset")
	}
	if !strings.Contains(err.Error(), "KEYRELAY_CONFIG") {
		t.Errorf("error should mention KEYRELAY_CONFIG: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyrelay.yaml")
	content := `
upstream:
  target: /run/user/1000/upstream-agent.sock
  dial_timeout: 2s
control:
  socket_path: /run/user/1000/keyrelay/control.sock
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Upstream.Target != "/run/user/1000/upstream-agent.sock" {
		t.Errorf("upstream target = %s", cfg.Upstream.Target)
	}
	timeout, err := cfg.UpstreamDialTimeout()
	if err != nil {
		t.Fatalf("UpstreamDialTimeout: %v", err)
	}
	if timeout != 2*time.Second {
		t.Errorf("dial timeout = %v, want 2s", timeout)
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		t.Fatalf("SlogLevel: %v", err)
	}
	if level != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level)
	}
}

func TestLoadFile_ExpandsVariables(t *testing.T) {
	t.Setenv("KEYRELAY_TEST_RUNDIR", "/run/user/4242")

	path := filepath.Join(t.TempDir(), "keyrelay.yaml")
	content := "upstream:\n  target: ${KEYRELAY_TEST_RUNDIR}/agent.sock\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Upstream.Target != "/run/user/4242/agent.sock" {
		t.Errorf("expansion produced %s", cfg.Upstream.Target)
	}
}

func TestLoadFile_RejectsUnknownLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyrelay.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: loud\n"), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestLoadFile_RejectsBadDialTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyrelay.yaml")
	if err := os.WriteFile(path, []byte("upstream:\n  dial_timeout: soon\n"), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unparseable dial_timeout")
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
