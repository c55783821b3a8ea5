// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest reconciles uploaded segment files into the
// Route/Segment data model and derives secondary artifacts.
//
// A [Worker] processes one upload at a time: authorize the device,
// find-or-create the route and segment rows, apply the file-type
// specific logic (decode a qlog, anonymize an rlog, record a camera
// URL), and recompute the route's aggregate fields from its full
// segment set. Many workers run concurrently, one per upload job, with
// no ordering guarantee between segments of the same route — segment
// files arrive out of order over cellular links, and correctness never
// depends on arrival order.
//
// Concurrency correctness rests on two mechanisms. First, the lockmap
// registry serializes route creation per route name and all updates
// per segment name, so two uploads of different file types for the
// same segment cannot clobber each other's partial update. Second,
// route aggregates are recomputed from the full persisted segment set
// on every commit rather than adjusted incrementally: concurrent
// commits on the same route can overwrite each other's aggregate
// write with a slightly stale one, but the next ingestion recomputes
// from current truth, so aggregates are never permanently wrong.
//
// Failures are reported to the caller (the external job queue) for
// retry; they are never surfaced to the uploading device. An upload
// from an unregistered device is a silent no-op success, not an error.
package ingest
