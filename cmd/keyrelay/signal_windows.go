// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package main

import (
	"os"
	"os/signal"
)

// shutdownSignal returns a channel that receives on interrupt. Windows
// delivers Ctrl+C and Ctrl+Break as os.Interrupt; there is no SIGTERM.
func shutdownSignal() <-chan os.Signal {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	return signals
}
