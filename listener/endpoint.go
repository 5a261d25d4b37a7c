// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

package listener

import "net"

// endpoint is one bound instance of the conventional agent identity.
// The platform files provide the real implementations; listener tests
// substitute fakes.
type endpoint interface {
	// accept blocks until a client connects. close unblocks it with
	// net.ErrClosed (or an error satisfying errors.Is against it).
	accept() (session, error)

	// close releases the binding. Safe to call more than once.
	close() error
}

// session is one accepted client connection. peerProcessID is the
// platform capability for identifying the remote process; a session
// that cannot name its peer is rejected rather than treated as
// anonymous.
type session interface {
	conn() net.Conn
	peerProcessID() (int, error)
	close() error
}
