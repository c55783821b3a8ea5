// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package event implements the framed binary telemetry format recorded
// by devices and uploaded as qlog/rlog segment files.
//
// A log is a flat byte sequence of frames. Each frame is a 4-byte
// little-endian payload length followed by a CBOR envelope:
//
//	{1: logMonoTime, 2: kind, 3: payload}
//
// logMonoTime is the device's monotonic clock in nanoseconds at
// capture; kind is one of the ~20 values in [Kind]; payload is a
// kind-specific CBOR value. The length prefix delimits the envelope,
// so a consumer can skip frames whose kind it does not recognize
// without knowing their payload shape.
//
// [Reader] is a lazy, finite, non-restartable iterator over a decoded
// buffer. A malformed frame — short header, length running past the
// end of the buffer, undecodable envelope or payload — ends the
// sequence at that point with no error. Devices upload over flaky
// cellular links and a power cut truncates the file mid-frame;
// everything decoded before the damage is real data and is kept. This
// is intentional, not an omission: do not convert truncation into a
// decode failure.
package event
