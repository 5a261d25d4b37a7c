// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows && !linux && !darwin

package listener

import (
	"fmt"
	"net"
	"runtime"
)

// peerProcessID has no kernel-backed credential mechanism wired up on
// this platform. Sessions are rejected rather than treated as
// anonymous, the same failure path credential lookup takes on the
// supported platforms.
func peerProcessID(conn *net.UnixConn) (int, error) {
	return 0, fmt.Errorf("peer identification not supported on %s", runtime.GOOS)
}
