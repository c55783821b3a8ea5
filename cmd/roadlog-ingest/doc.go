// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

// roadlog-ingest is the ingestion service: it watches the spool
// directory for upload jobs, reconciles each uploaded segment file
// into the route/segment data model, and derives the playback
// artifacts (unlog, GPS track, thumbnail sprite, anonymized rlog).
//
// Configuration comes from the file named by ROADLOG_CONFIG or the
// --config flag; see lib/config for the schema. The service runs until
// SIGINT or SIGTERM, then drains in-flight jobs before exiting.
package main
