// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package listener owns the conventional SSH agent endpoint: the fixed
// local name that SSH client tooling connects to when it wants "the
// agent". On Windows that name is the well-known pipe
// \\.\pipe\openssh-ssh-agent; on other platforms it is a per-user
// Unix socket path with the same role.
//
// A [Listener] binds the endpoint once, then runs a background accept
// loop that serializes client sessions: each accepted connection has
// its peer process identified, is handed to the caller's [Handler],
// and the loop does not accept the next connection until the handler
// returns. At most one session is ever active per listener.
//
// The listener does not speak the SSH agent protocol. Bytes on the
// connection are opaque; interpreting them (and deciding policy based
// on the identified [Peer]) is entirely the handler's job.
//
// [Listener.Close] is idempotent: it cancels a pending accept wait,
// forcibly disconnects an in-flight session so the handler's I/O
// unblocks, and then waits for the loop to exit.
package listener
