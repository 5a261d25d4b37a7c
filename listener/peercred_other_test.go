// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows && !linux && !darwin

package listener

import (
	"strings"
	"testing"
)

func TestPeerProcessIDReportsUnsupportedPlatform(t *testing.T) {
	pid, err := peerProcessID(nil)
	if err == nil {
		t.Fatal("expected error on platform without peer credentials")
	}
	if pid != 0 {
		t.Errorf("pid = %d, want 0", pid)
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("error %q should say the platform is unsupported", err)
	}
}
