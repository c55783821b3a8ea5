// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package blobstore stores uploaded segment files and derived
// artifacts under deterministic string keys.
//
// Keys are built from device id, capture timestamp, segment number,
// and an artifact suffix (see [Key]), so any component — the upload
// handler, the ingestion worker, the API layer serving playback — can
// reconstruct a key without a lookup. The store itself is a flat
// key→bytes namespace with prefix listing; it knows nothing about
// routes or segments.
//
// The filesystem implementation transparently compresses values and
// verifies a BLAKE3 checksum on every read. Head reports the logical
// (uncompressed) size, which is what quota accounting and HTTP
// Content-Length need.
package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get and Head for keys that have never
// been Put.
var ErrNotFound = errors.New("blobstore: key not found")

// Store is the blob storage contract consumed by the ingestion
// pipeline. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value at key, replacing any existing value. The
	// contentType hints compression selection; it is not persisted.
	Put(ctx context.Context, key string, value []byte, contentType string) error

	// Head returns the logical (uncompressed) size of the value at
	// key, or ErrNotFound.
	Head(ctx context.Context, key string) (int64, error)

	// List returns all keys with the given prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Artifact suffixes. The device uploads the first six; the ingestion
// worker derives the last three from a qlog or rlog.
const (
	SuffixRlog     = "rlog.zst"
	SuffixQlog     = "qlog.zst"
	SuffixFcam     = "fcamera.hevc"
	SuffixDcam     = "dcamera.hevc"
	SuffixEcam     = "ecamera.hevc"
	SuffixQcam     = "qcamera.mp4"
	SuffixUnlog    = "unlog.txt"
	SuffixCoords   = "coords.json"
	SuffixSprite   = "sprite.jpg"
	SuffixRlogAnon = "rlog.anon"
)

// Key builds the deterministic storage key for one artifact of one
// segment: "<dongle>/<timestamp>/<segment>/<suffix>".
func Key(dongleID, timestamp string, segment int, suffix string) string {
	return fmt.Sprintf("%s/%s/%d/%s", dongleID, timestamp, segment, suffix)
}

// SegmentPrefix builds the key prefix covering every artifact of one
// segment.
func SegmentPrefix(dongleID, timestamp string, segment int) string {
	return fmt.Sprintf("%s/%s/%d/", dongleID, timestamp, segment)
}

// RoutePrefix builds the key prefix covering every segment of one
// route.
func RoutePrefix(dongleID, timestamp string) string {
	return fmt.Sprintf("%s/%s/", dongleID, timestamp)
}
