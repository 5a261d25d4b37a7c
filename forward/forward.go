// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package forward relays accepted agent sessions to an upstream agent
// endpoint. It is the standard connection handler wired into the
// listener by the keyrelay daemon: every byte from the client goes to
// the upstream agent and vice versa, with no interpretation of the
// agent protocol in between.
package forward

import (
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/keyrelay/keyrelay/lib/netutil"
	"github.com/keyrelay/keyrelay/listener"
)

// defaultDialTimeout bounds the upstream dial when the caller does not
// configure one.
const defaultDialTimeout = 5 * time.Second

// Forwarder bridges agent sessions to an upstream agent endpoint.
type Forwarder struct {
	// Target is the upstream agent endpoint: a Unix socket path, or a
	// named pipe path on Windows.
	Target string

	// DialTimeout is how long a session waits for the upstream agent
	// to answer. Zero means 5 seconds.
	DialTimeout time.Duration

	// Logger receives structured log output. If nil, slog.Default()
	// is used. Per-session events are logged at Debug level; errors
	// at Error.
	Logger *slog.Logger

	sessionCount atomic.Int64
}

// logger returns the configured logger or the default.
func (f *Forwarder) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func (f *Forwarder) dialTimeout() time.Duration {
	if f.DialTimeout > 0 {
		return f.DialTimeout
	}
	return defaultDialTimeout
}

// Probe verifies the upstream endpoint is answering. The daemon calls
// this once at startup so a misconfigured target fails loudly instead
// of on the first client.
func (f *Forwarder) Probe() error {
	connection, err := dialUpstream(f.Target, f.dialTimeout())
	if err != nil {
		return fmt.Errorf("upstream agent %s not reachable: %w", f.Target, err)
	}
	connection.Close()
	return nil
}

// Handle relays one agent session. It satisfies [listener.Handler]:
// the listener owns the connection's lifetime and serializes calls, so
// Handle only has to dial, bridge, and return when the session ends.
func (f *Forwarder) Handle(conn net.Conn, peer *listener.Peer) {
	sessionID := f.sessionCount.Add(1)
	logger := f.logger().With("session_id", sessionID, "pid", peer.PID)

	logger.Debug("forwarding agent session",
		"executable", peer.Executable,
		"target", f.Target,
	)

	upstream, err := dialUpstream(f.Target, f.dialTimeout())
	if err != nil {
		logger.Error("failed to connect to upstream agent", "error", err)
		conn.Close()
		return
	}

	if err := netutil.BridgeConnections(conn, upstream); err != nil {
		logger.Debug("session bridge error", "error", err)
	}

	logger.Debug("agent session closed")
}
