// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package listener

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// conventionalEndpointName returns the fixed per-user socket path that
// plays the role of the well-known agent pipe on non-Windows systems.
func conventionalEndpointName() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "keyrelay", "agent.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("keyrelay-%d", os.Getuid()), "agent.sock")
}

// probeTimeout bounds the pre-bind conflict probe. A live agent on a
// local socket answers immediately; anything slower is not an owner.
const probeTimeout = 250 * time.Millisecond

// probeConflict dials the endpoint to detect an existing owner. A
// successful connect means another agent is answering — caller-fatal.
// A refused connect means the socket file is stale (unclean previous
// exit); it is removed so the bind can proceed.
func probeConflict(name string) error {
	probe, err := net.DialTimeout("unix", name, probeTimeout)
	if err == nil {
		probe.Close()
		return fmt.Errorf("%w: %s is answering", ErrConflictingAgent, name)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		if removeErr := os.Remove(name); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("removing stale socket %s: %w", name, removeErr)
		}
	}
	return nil
}

// bindEndpoint binds the Unix socket with owner-only permissions. An
// in-use address means another process won the bind race despite the
// probe; that is still a conflict, not a retryable failure.
func bindEndpoint(name string) (endpoint, error) {
	if err := os.MkdirAll(filepath.Dir(name), 0o700); err != nil {
		return nil, fmt.Errorf("creating endpoint directory: %w", err)
	}

	netListener, err := net.Listen("unix", name)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %v", ErrConflictingAgent, err)
		}
		return nil, fmt.Errorf("binding %s: %w", name, err)
	}

	if err := os.Chmod(name, 0o600); err != nil {
		netListener.Close()
		return nil, fmt.Errorf("restricting %s: %w", name, err)
	}

	return &unixEndpoint{listener: netListener}, nil
}

type unixEndpoint struct {
	listener  net.Listener
	closeOnce sync.Once
	closeErr  error
}

func (e *unixEndpoint) accept() (session, error) {
	connection, err := e.listener.Accept()
	if err != nil {
		return nil, err
	}
	return &unixSession{connection: connection}, nil
}

func (e *unixEndpoint) close() error {
	// The net package unlinks the socket file on Close.
	e.closeOnce.Do(func() {
		e.closeErr = e.listener.Close()
	})
	return e.closeErr
}

type unixSession struct {
	connection net.Conn
}

func (s *unixSession) conn() net.Conn { return s.connection }

func (s *unixSession) close() error { return s.connection.Close() }

// peerProcessID reports the PID on the client end of the socket using
// the platform's kernel-backed credential mechanism (SO_PEERCRED on
// Linux, LOCAL_PEERPID on Darwin).
func (s *unixSession) peerProcessID() (int, error) {
	unixConnection, ok := s.connection.(*net.UnixConn)
	if !ok {
		return 0, fmt.Errorf("connection is %T, not a unix socket", s.connection)
	}
	return peerProcessID(unixConnection)
}
