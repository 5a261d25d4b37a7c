// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the keyrelay
// daemon.
//
// Configuration is loaded from a single file specified by either the
// KEYRELAY_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${XDG_RUNTIME_DIR}, and other environment references are
// expanded. No other environment variables override config values.
//
// The conventional agent endpoint name is deliberately absent from the
// configuration — it is the wire-level contract with SSH client
// tooling and is fixed by the listener package.
//
// Key exports:
//
//   - [Config] -- master struct with Upstream, Control, Log sections
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other keyrelay packages.
package config
