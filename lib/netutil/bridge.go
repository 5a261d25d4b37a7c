// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides connection plumbing shared by keyrelay
// components: bidirectional byte bridging and classification of the
// error noise produced by normal connection teardown.
package netutil

import (
	"io"
	"net"
)

// bridgeCopyResult holds the outcome of one direction of a bidirectional copy.
type bridgeCopyResult struct {
	bytesCopied int64
	err         error
}

// BridgeConnections copies bytes bidirectionally between two connections
// until either direction finishes. Both connections are closed before
// returning so the surviving copy goroutine unblocks. Returns the error
// from the direction that terminated first, or nil when termination was
// normal connection closure (EOF, peer disconnect, broken pipe,
// connection reset).
func BridgeConnections(a, b net.Conn) error {
	done := make(chan bridgeCopyResult, 2)

	go func() {
		bytesCopied, err := io.Copy(b, a)
		done <- bridgeCopyResult{bytesCopied, err}
	}()

	go func() {
		bytesCopied, err := io.Copy(a, b)
		done <- bridgeCopyResult{bytesCopied, err}
	}()

	// Wait for one direction to finish, then close both to unblock the other.
	first := <-done
	a.Close()
	b.Close()
	<-done

	if first.err != nil && !IsExpectedCloseError(first.err) {
		return first.err
	}
	return nil
}
