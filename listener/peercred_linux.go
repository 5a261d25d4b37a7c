// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package listener

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerProcessID reads the kernel's record of the connecting process
// via SO_PEERCRED. The credentials are captured by the kernel at
// connect time, so they cannot be spoofed by the client.
func peerProcessID(conn *net.UnixConn) (int, error) {
	rawConnection, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("accessing socket descriptor: %w", err)
	}

	var credentials *unix.Ucred
	var credentialsErr error
	controlErr := rawConnection.Control(func(fd uintptr) {
		credentials, credentialsErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if controlErr != nil {
		return 0, fmt.Errorf("reading peer credentials: %w", controlErr)
	}
	if credentialsErr != nil {
		return 0, fmt.Errorf("SO_PEERCRED: %w", credentialsErr)
	}
	if credentials.Pid <= 0 {
		return 0, fmt.Errorf("kernel reported invalid peer pid %d", credentials.Pid)
	}

	return int(credentials.Pid), nil
}
