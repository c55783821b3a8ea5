// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the Device/Route/Segment data model behind
// the narrow CRUD contract the ingestion pipeline consumes.
//
// Two backends implement [Store]: SQLite (zombiezen, WAL mode) for
// single-box deployments and tests, and PostgreSQL (pgx) for
// deployments that already run a database server. The contract is
// deliberately small — find, insert-if-absent, full-row update, and
// an ordered segment listing — because all reconciliation logic lives
// in the ingest package, serialized by its lock registry, not in SQL.
//
// Insert-if-absent is the concurrency-critical operation: two jobs
// uploading different files of a brand-new route race to create the
// route row. Both backends resolve the race inside the insert (ON
// CONFLICT DO NOTHING followed by a re-fetch), so the loser observes
// the winner's row instead of an error.
package store
