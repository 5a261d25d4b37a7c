// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"fmt"
	"net"
	"time"

	"github.com/keyrelay/keyrelay/lib/codec"
)

// Query connects to a running daemon's control socket and returns its
// status. Used by the "keyrelay status" command and by tests.
func Query(socketPath string, timeout time.Duration) (*Status, error) {
	connection, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing control socket %s (is the daemon running?): %w", socketPath, err)
	}
	defer connection.Close()

	connection.SetDeadline(time.Now().Add(timeout))

	if err := codec.NewEncoder(connection).Encode(Request{Action: "status"}); err != nil {
		return nil, fmt.Errorf("sending status request: %w", err)
	}

	var response Response
	if err := codec.NewDecoder(connection).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading status response: %w", err)
	}
	if !response.OK {
		return nil, fmt.Errorf("daemon refused status request: %s", response.Error)
	}
	if response.Status == nil {
		return nil, fmt.Errorf("daemon sent an OK response with no status")
	}

	return response.Status, nil
}
