// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin

package listener

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerProcessID reads the kernel's record of the connecting process
// via LOCAL_PEERPID, Darwin's equivalent of Linux's SO_PEERCRED.
func peerProcessID(conn *net.UnixConn) (int, error) {
	rawConnection, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("accessing socket descriptor: %w", err)
	}

	var pid int
	var pidErr error
	controlErr := rawConnection.Control(func(fd uintptr) {
		pid, pidErr = unix.GetsockoptInt(int(fd), unix.SOL_LOCAL, unix.LOCAL_PEERPID)
	})
	if controlErr != nil {
		return 0, fmt.Errorf("reading peer credentials: %w", controlErr)
	}
	if pidErr != nil {
		return 0, fmt.Errorf("LOCAL_PEERPID: %w", pidErr)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("kernel reported invalid peer pid %d", pid)
	}

	return pid, nil
}
