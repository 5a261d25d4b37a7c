// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package control serves the daemon's status over a local Unix socket.
// Each connection handles exactly one CBOR request-response cycle: the
// client writes a request value, the server answers and the connection
// closes. The protocol is deliberately separate from the agent
// endpoint — status queries must work even while an agent session is
// mid-handler.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/keyrelay/keyrelay/lib/codec"
)

// Request is the wire format for control queries.
type Request struct {
	// Action is the request type. The only defined action is "status".
	Action string `cbor:"action"`
}

// Response is the wire-format envelope for all control responses.
type Response struct {
	OK     bool    `cbor:"ok"`
	Error  string  `cbor:"error,omitempty"`
	Status *Status `cbor:"status,omitempty"`
}

// Status describes the running daemon.
type Status struct {
	// Version is the daemon's build version string.
	Version string `cbor:"version"`

	// EndpointName is the conventional agent endpoint the daemon owns.
	EndpointName string `cbor:"endpoint_name"`

	// UpstreamTarget is the agent endpoint sessions are forwarded to.
	UpstreamTarget string `cbor:"upstream_target"`

	// StartedAt is when the agent endpoint was bound.
	StartedAt time.Time `cbor:"started_at"`

	// SessionsServed counts handler invocations since startup.
	SessionsServed uint64 `cbor:"sessions_served"`

	// ActivePeerPID is the PID of the client whose session is
	// currently active, or 0 when idle.
	ActivePeerPID int `cbor:"active_peer_pid,omitempty"`
}

// StatusFunc produces the current status snapshot for each query.
type StatusFunc func() Status

// Server answers status queries on a Unix socket.
type Server struct {
	socketPath string
	status     StatusFunc
	logger     *slog.Logger

	// activeConnections tracks in-flight queries for graceful
	// shutdown. Serve waits for all of them before returning.
	activeConnections sync.WaitGroup
}

// NewServer creates a server that will listen on socketPath and answer
// "status" queries from snapshots produced by status.
func NewServer(socketPath string, status StatusFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		status:     status,
		logger:     logger,
	}
}

// Serve accepts connections on the control socket until ctx is
// cancelled, then stops accepting and waits for active queries to
// complete.
//
// Any existing socket file at the configured path is removed before
// listening. The socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("creating control socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale control socket %s: %w", s.socketPath, err)
	}

	controlListener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		controlListener.Close()
		os.Remove(s.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		controlListener.Close()
	}()

	s.logger.Info("control socket listening", "path", s.socketPath)

	for {
		connection, err := controlListener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("control accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(connection)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout is how long we wait for the client to send its request.
// A well-behaved client sends the request immediately after connecting.
const readTimeout = 30 * time.Second

// writeTimeout is how long we wait for the response to be written.
const writeTimeout = 10 * time.Second

// maxRequestSize is the maximum size of a single CBOR request. Control
// requests are a few dozen bytes; 64 KB is already absurdly generous.
const maxRequestSize = 64 * 1024

// handleConnection processes one request-response cycle.
func (s *Server) handleConnection(connection net.Conn) {
	defer connection.Close()

	connection.SetReadDeadline(time.Now().Add(readTimeout))

	// Decode one CBOR value from the connection. CBOR is self-
	// delimiting so no framing protocol is needed. LimitReader
	// prevents a buggy client from exhausting memory.
	var request Request
	if err := codec.NewDecoder(io.LimitReader(connection, maxRequestSize)).Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		s.writeError(connection, fmt.Sprintf("invalid request: %v", err))
		return
	}

	switch request.Action {
	case "status":
		status := s.status()
		s.write(connection, Response{OK: true, Status: &status})
	case "":
		s.writeError(connection, "missing required field: action")
	default:
		s.writeError(connection, fmt.Sprintf("unknown action %q", request.Action))
	}
}

// writeError sends a failure response: {ok: false, error: "..."}.
func (s *Server) writeError(connection net.Conn, message string) {
	s.write(connection, Response{OK: false, Error: message})
}

// write sends a response. Write failures are logged at debug level —
// the connection is closing regardless.
func (s *Server) write(connection net.Conn, response Response) {
	connection.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(connection).Encode(response); err != nil {
		s.logger.Debug("failed to write control response", "error", err)
	}
}
