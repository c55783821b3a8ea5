// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/roadlog-foundation/roadlog/lib/store"
)

// findOrCreateRoute returns the persisted route row for the job,
// inserting a fresh one when this is the route's first upload. Callers
// hold the route lock, so the find/insert sequence is serialized
// within this process; the insert-if-absent store contract covers
// racing processes.
func (w *Worker) findOrCreateRoute(ctx context.Context, job Job) (*store.Route, error) {
	name := store.RouteName(job.DongleID, job.Timestamp)
	route, err := w.store.FindRoute(ctx, name)
	if err == nil {
		return route, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("finding route %s: %w", name, err)
	}

	route, err = w.store.InsertRouteIfAbsent(ctx, store.NewRoute(job.DongleID, job.Timestamp, job.CreateTime))
	if err != nil {
		return nil, fmt.Errorf("creating route %s: %w", name, err)
	}
	return route, nil
}

// findOrCreateSegment mirrors findOrCreateRoute for the segment row.
// Callers hold the segment lock.
func (w *Worker) findOrCreateSegment(ctx context.Context, routeName string, number int, createTime int64) (*store.Segment, error) {
	name := store.SegmentName(routeName, number)
	segment, err := w.store.FindSegment(ctx, name)
	if err == nil {
		return segment, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("finding segment %s: %w", name, err)
	}

	segment, err = w.store.InsertSegmentIfAbsent(ctx, store.NewSegment(routeName, number, createTime))
	if err != nil {
		return nil, fmt.Errorf("creating segment %s: %w", name, err)
	}
	return segment, nil
}
