// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

package listener

// Peer identifies the process on the client end of an agent session.
// It is resolved at accept time, before the handler runs, so a client
// that exits immediately after connecting is caught here rather than
// mid-protocol.
type Peer struct {
	// PID is the operating-system process identifier of the client,
	// as reported by the kernel for this connection.
	PID int

	// Executable is the absolute path of the client's binary when the
	// platform can report it, empty otherwise. Audit metadata only —
	// it is not verified and must not gate policy by itself.
	Executable string
}
