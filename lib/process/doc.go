// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the keyrelay
// daemon. These functions centralize the raw I/O that happens before
// or after the structured logger exists:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Process exit after an unrecoverable error in main().
//
// All other output in the daemon goes through slog.
package process
