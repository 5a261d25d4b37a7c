// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package forward

import (
	"net"
	"time"
)

// dialUpstream connects to the upstream agent's Unix socket.
func dialUpstream(target string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", target, timeout)
}
