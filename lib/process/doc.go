// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for Roadlog
// service binaries. These functions centralize the raw I/O patterns
// that exist before or after the structured logger:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Process exit after an unrecoverable error in main().
//
// All other raw I/O in service binaries should go through the
// structured logger instead.
package process
