// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrConflictingAgent indicates that another process already owns the
// conventional agent endpoint. This is caller-fatal at construction:
// the second binder must not queue behind the first.
var ErrConflictingAgent = errors.New("conflicting agent already running")

// Handler processes one accepted agent session. The connection carries
// the raw agent protocol bytes; peer identifies the connecting process
// for policy and audit decisions. The handler owns the session until it
// returns — the listener accepts no further connections while it runs.
//
// A panic in the handler is not recovered. It propagates out of the
// session goroutine and crashes the process, which is deliberate: the
// listener has no meaningful way to continue past a broken handler.
type Handler func(conn net.Conn, peer *Peer)

// Stats is a point-in-time snapshot of listener activity, served over
// the control socket.
type Stats struct {
	// StartedAt is when the endpoint was bound.
	StartedAt time.Time

	// SessionsServed counts handler invocations since startup.
	SessionsServed uint64

	// ActivePeerPID is the process ID of the client whose session is
	// currently mid-handler, or 0 when the listener is idle.
	ActivePeerPID int
}

// Listener owns the conventional agent endpoint and its accept loop.
// Create one with [Listen]; it is running when the constructor returns.
type Listener struct {
	handler Handler
	logger  *slog.Logger
	ep      endpoint

	cancel context.CancelFunc
	done   chan struct{}

	// loopErr is written by the loop goroutine before done is closed
	// and read by Close after done is closed.
	loopErr error

	closeOnce sync.Once
	closeErr  error

	startedAt      time.Time
	sessionsServed atomic.Uint64
	activePeerPID  atomic.Int64
}

// Listen binds the conventional agent endpoint and starts the accept
// loop in the background. It fails with [ErrConflictingAgent] when
// another process is already answering on the endpoint. A nil logger
// means slog.Default().
//
// The existence probe narrows, but cannot eliminate, the race of two
// processes binding between check and bind; the bind itself reports
// the loser as a conflict.
func Listen(handler Handler, logger *slog.Logger) (*Listener, error) {
	return listenPath(conventionalEndpointName(), handler, logger)
}

// EndpointName returns the conventional endpoint name for this
// platform. It is fixed: interoperability with SSH client tooling
// depends on the exact name.
func EndpointName() string {
	return conventionalEndpointName()
}

// listenPath is Listen with an explicit endpoint name. Tests use it to
// bind throwaway endpoints; production code goes through Listen so the
// conventional identity cannot be misconfigured.
func listenPath(name string, handler Handler, logger *slog.Logger) (*Listener, error) {
	if handler == nil {
		return nil, fmt.Errorf("listener: handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := probeConflict(name); err != nil {
		return nil, err
	}
	ep, err := bindEndpoint(name)
	if err != nil {
		return nil, err
	}

	logger.Info("agent endpoint bound", "name", name)
	return newListener(ep, handler, logger), nil
}

// newListener assembles a Listener around an already-bound endpoint
// and starts the accept loop. Tests inject fake endpoints here.
func newListener(ep endpoint, handler Handler, logger *slog.Logger) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		handler:   handler,
		logger:    logger,
		ep:        ep,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	go func() {
		defer close(l.done)
		l.loopErr = l.run(ctx)
	}()
	return l
}

// Close shuts the listener down: it cancels a pending accept wait,
// forcibly disconnects the active session if one is mid-handler, and
// blocks until the background loop has fully exited. The endpoint-
// closure signal from the cancelled accept wait is expected and
// swallowed; any other accept fault is surfaced by Close, even when
// it raced with shutdown.
//
// Close is idempotent. After the first call completes, subsequent
// calls return the same result immediately.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		l.ep.close()
		<-l.done
		l.closeErr = l.loopErr
	})
	return l.closeErr
}

// Done is closed when the accept loop has exited, whether because
// Close was called or because the endpoint failed out from under the
// loop. Once Done is closed, Close returns without blocking and
// reports any loop fault; callers that need to react to an endpoint
// failure promptly select on Done rather than waiting for shutdown.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Stats returns a snapshot of listener activity.
func (l *Listener) Stats() Stats {
	return Stats{
		StartedAt:      l.startedAt,
		SessionsServed: l.sessionsServed.Load(),
		ActivePeerPID:  int(l.activePeerPID.Load()),
	}
}

// run is the accept loop. It owns the endpoint and the active session;
// nothing else touches them while the loop is alive. Returns nil when
// the endpoint reports closure. Any other accept failure is fatal to
// the listener and surfaced through Close.
func (l *Listener) run(ctx context.Context) error {
	defer l.ep.close()

	for {
		sess, err := l.ep.accept()
		if err != nil {
			// Classify by the error itself, not by shutdown state: a
			// genuine endpoint fault racing with Close must be retained,
			// not mistaken for the closure signal.
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("awaiting agent client: %w", err)
		}

		l.serveSession(ctx, sess)

		if ctx.Err() != nil {
			return nil
		}
	}
}

// serveSession identifies the connecting process and runs the handler
// to completion. Identification failures are fatal to this session
// only: the connection is released and the loop moves on. The handler
// runs on its own goroutine so the loop's wait is uniform, but the
// loop does not advance until the handler returns — sessions are
// strictly serialized.
func (l *Listener) serveSession(ctx context.Context, sess session) {
	defer sess.close()

	pid, err := sess.peerProcessID()
	if err != nil {
		// An unidentifiable connection is unusable, not anonymous.
		l.logger.Error("resolving agent client process id", "error", err)
		return
	}
	peer, err := resolvePeer(pid)
	if err != nil {
		l.logger.Error("identifying agent client process", "pid", pid, "error", err)
		return
	}

	l.sessionsServed.Add(1)
	l.activePeerPID.Store(int64(peer.PID))
	defer l.activePeerPID.Store(0)

	l.logger.Debug("agent session started",
		"pid", peer.PID,
		"executable", peer.Executable,
	)

	handlerDone := make(chan struct{})
	go func() {
		defer close(handlerDone)
		l.handler(sess.conn(), peer)
	}()

	select {
	case <-handlerDone:
	case <-ctx.Done():
		// Forced disconnect: fail the handler's in-flight I/O so it
		// returns promptly, then wait for it. The handler is never
		// killed outright.
		sess.close()
		<-handlerDone
	}

	l.logger.Debug("agent session ended", "pid", peer.PID)
}
