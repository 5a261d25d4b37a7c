// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Keyrelay owns the conventional SSH agent endpoint and relays every
// client session to an upstream agent. SSH tooling that looks for the
// agent at the well-known name reaches the upstream agent without
// knowing where it actually lives. A local control socket answers
// "keyrelay status" queries while the daemon runs.
package main
