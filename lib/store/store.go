// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Find* for rows that do not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract consumed by the ingestion
// pipeline. Implementations must be safe for concurrent use; callers
// provide any higher-level mutual exclusion they need (the ingest
// worker holds the segment lock across its find/update sequence).
type Store interface {
	// FindDevice returns the device row for dongleID, or ErrNotFound.
	FindDevice(ctx context.Context, dongleID string) (*Device, error)

	// RegisterDevice creates or replaces a device row. Device
	// lifecycle is owned by the pairing flow, not ingestion; this
	// exists for that flow and for test fixtures.
	RegisterDevice(ctx context.Context, device *Device) error

	// FindRoute returns the route named name, or ErrNotFound.
	FindRoute(ctx context.Context, name string) (*Route, error)

	// InsertRouteIfAbsent inserts route unless a row with its name
	// already exists, and returns the row that is now persisted —
	// the inserted one, or the concurrent winner's. Never returns a
	// uniqueness error.
	InsertRouteIfAbsent(ctx context.Context, route *Route) (*Route, error)

	// UpdateRoute replaces every non-identity column of the route row.
	UpdateRoute(ctx context.Context, route *Route) error

	// FindSegment returns the segment named name, or ErrNotFound.
	FindSegment(ctx context.Context, name string) (*Segment, error)

	// InsertSegmentIfAbsent mirrors InsertRouteIfAbsent for segments.
	InsertSegmentIfAbsent(ctx context.Context, segment *Segment) (*Segment, error)

	// UpdateSegment replaces every non-identity column of the
	// segment row.
	UpdateSegment(ctx context.Context, segment *Segment) error

	// ListSegmentsByRoute returns all segments of a route ordered by
	// segment number. An existing route with no segments yet returns
	// an empty slice, not an error.
	ListSegmentsByRoute(ctx context.Context, routeName string) ([]Segment, error)

	// Close releases the backend's resources.
	Close() error
}
