// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides keyrelay's standard CBOR encoding configuration.
//
// The control socket protocol is CBOR: self-delimiting values, no
// framing layer, and deterministic output. This package provides the
// shared encoding and decoding modes so that the daemon and the status
// client encode identically without duplicating configuration. The
// encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. Same
// logical data always produces identical bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the control socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// The agent byte stream itself never passes through this package — the
// listener and forwarder treat agent protocol bytes as opaque.
package codec
