// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package listener

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// resolvePeer confirms the identified process is still alive and
// gathers audit metadata about it. A PID whose process has already
// exited is an error: the session cannot be attributed to anyone.
func resolvePeer(pid int) (*Peer, error) {
	// Signal 0 performs the existence check without delivering a
	// signal. EPERM means the process exists but belongs to another
	// user — still identified.
	if err := unix.Kill(pid, 0); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil, fmt.Errorf("client process %d exited before identification: %w", pid, err)
		}
		if !errors.Is(err, unix.EPERM) {
			return nil, fmt.Errorf("checking client process %d: %w", pid, err)
		}
	}

	peer := &Peer{PID: pid}

	// Best effort: /proc is Linux-only and the link may be unreadable
	// for processes owned by other users.
	if executable, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid)); err == nil {
		peer.Executable = executable
	}

	return peer, nil
}
