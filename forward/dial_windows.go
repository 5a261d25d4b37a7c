// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package forward

import (
	"net"
	"strings"
	"time"

	"github.com/Microsoft/go-winio"
)

// dialUpstream connects to the upstream agent. Pipe paths dial a named
// pipe; anything else is treated as an AF_UNIX socket path, which
// Windows supports for agents that expose one.
func dialUpstream(target string, timeout time.Duration) (net.Conn, error) {
	if strings.HasPrefix(target, `\\.\pipe\`) {
		return winio.DialPipe(target, &timeout)
	}
	return net.DialTimeout("unix", target, timeout)
}
