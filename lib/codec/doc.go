// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Roadlog's standard CBOR encoding configuration.
//
// Roadlog uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: upload job files dropped into the
//     spool directory, derived coordinate-track artifacts, CLI output.
//   - CBOR for the telemetry wire format: the event envelopes inside
//     qlog/rlog segment files and the blob container headers.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Roadlog package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, which matters because re-encoded (anonymized) logs are hashed
// and deduplicated downstream.
//
// For buffer-oriented operations (framed events, blob headers):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Event envelopes use integer map keys (`keyasint` struct tags) to keep
// the per-event overhead small at full-rate log frequencies; everything
// else uses string keys.
package codec
