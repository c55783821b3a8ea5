// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roadlog-foundation/roadlog/lib/blobstore"
	"github.com/roadlog-foundation/roadlog/lib/lockmap"
	"github.com/roadlog-foundation/roadlog/lib/store"
)

// Config carries a Worker's dependencies. All fields except Logger are
// required.
type Config struct {
	Store  store.Store
	Blobs  blobstore.Store
	Locks  *lockmap.Registry
	Logger *slog.Logger
}

// Worker processes upload jobs. Safe for concurrent use: any number of
// goroutines may call Process on the same Worker.
type Worker struct {
	store  store.Store
	blobs  blobstore.Store
	locks  *lockmap.Registry
	logger *slog.Logger
}

// NewWorker returns a Worker with the given dependencies.
func NewWorker(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:  cfg.Store,
		blobs:  cfg.Blobs,
		locks:  cfg.Locks,
		logger: logger,
	}
}

// Process ingests one uploaded file: authorize the device, reconcile
// the route and segment rows, apply the file-type specific update, and
// recompute the route's aggregates from its full segment set.
//
// A returned error means the job should be retried; every step is
// idempotent, so a retry after a partial failure is safe. An upload
// from an unknown or unregistered device returns nil without touching
// anything.
func (w *Worker) Process(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	number, err := job.SegmentNumber()
	if err != nil {
		return err
	}

	device, err := w.store.FindDevice(ctx, job.DongleID)
	if errors.Is(err, store.ErrNotFound) {
		w.logger.Info("dropping upload from unknown device", "dongle_id", job.DongleID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding device %s: %w", job.DongleID, err)
	}
	if !device.Registered {
		w.logger.Info("dropping upload from unregistered device", "dongle_id", job.DongleID)
		return nil
	}

	routeName := store.RouteName(job.DongleID, job.Timestamp)

	// Route creation is serialized per route name; the lock is dropped
	// before the long file-type work so a slow qlog decode does not
	// block sibling segments from reconciling their rows.
	if err := w.locks.Acquire(ctx, routeName); err != nil {
		return err
	}
	route, err := w.findOrCreateRoute(ctx, job)
	w.locks.Release(routeName)
	if err != nil {
		return err
	}

	// The segment lock covers the find/apply/update sequence and the
	// route aggregate commit, so two file types of the same segment
	// cannot interleave their read-modify-write.
	segmentName := store.SegmentName(routeName, number)
	if err := w.locks.Acquire(ctx, segmentName); err != nil {
		return err
	}
	defer w.locks.Release(segmentName)

	segment, err := w.findOrCreateSegment(ctx, routeName, number, job.CreateTime)
	if err != nil {
		return err
	}

	changed, fingerprint, err := w.applyFileType(ctx, job, number, segment)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := w.store.UpdateSegment(ctx, segment); err != nil {
		return fmt.Errorf("updating segment %s: %w", segment.Name, err)
	}

	segments, err := w.store.ListSegmentsByRoute(ctx, routeName)
	if err != nil {
		return fmt.Errorf("listing segments of %s: %w", routeName, err)
	}
	if len(segments) == 0 {
		// The segment row was committed above; an empty list means the
		// backend is lying or lost the write.
		return fmt.Errorf("route %s has no segments after committing %s", routeName, segment.Name)
	}

	recomputeRouteAggregates(route, segments, fingerprint)
	if err := w.store.UpdateRoute(ctx, route); err != nil {
		return fmt.Errorf("updating route %s: %w", routeName, err)
	}

	w.logger.Info("ingested upload",
		"segment", segment.Name,
		"file_type", string(job.FileType),
		"route_distance_miles", route.DistanceMiles)
	return nil
}

// applyFileType applies the file-type specific mutation to segment.
// It returns false when the job changed nothing (unrecognized file
// type) and, for qlogs, the car fingerprint the log identified.
func (w *Worker) applyFileType(ctx context.Context, job Job, number int, segment *store.Segment) (changed bool, fingerprint string, err error) {
	switch job.FileType {
	case FileQlog:
		fingerprint, err = w.applyQlog(ctx, job, number, segment)
		return err == nil, fingerprint, err

	case FileRlog:
		err = w.applyRlog(ctx, job, number, segment)
		return err == nil, "", err

	case FileFcam:
		segment.FcamURL = job.FileURL
		return true, "", nil

	case FileDcam:
		segment.DcamURL = job.FileURL
		return true, "", nil

	case FileEcam:
		segment.EcamURL = job.FileURL
		return true, "", nil

	case FileQcam:
		err = w.applyQcam(ctx, job, segment)
		return err == nil, "", err

	default:
		w.logger.Warn("ignoring unrecognized file type",
			"file_type", string(job.FileType), "file_url", job.FileURL)
		return false, "", nil
	}
}

// applyQlog decodes the sparse log, uploads the derived artifacts, and
// fills the segment's qlog-derived fields.
func (w *Worker) applyQlog(ctx context.Context, job Job, number int, segment *store.Segment) (string, error) {
	compressed, err := w.blobs.Get(ctx, job.FileURL)
	if err != nil {
		return "", fmt.Errorf("fetching qlog %s: %w", job.FileURL, err)
	}
	buf, err := blobstore.DecompressZstd(compressed)
	if err != nil {
		return "", fmt.Errorf("decompressing qlog %s: %w", job.FileURL, err)
	}

	result := decodeQlog(buf)
	keys, err := w.uploadArtifacts(ctx, job, number, result)
	if err != nil {
		return "", err
	}

	segment.QlogURL = job.FileURL
	segment.UnlogURL = keys.Unlog
	segment.CoordsURL = keys.Coords
	segment.DistanceMiles = result.acc.Miles()
	segment.HasGps = result.hasGps
	segment.StartMillis = result.segmentStartMillis()
	segment.EndMillis = result.maxMillis
	if result.hasGps {
		segment.StartLat = result.startLat
		segment.StartLng = result.startLng
		segment.EndLat = result.endLat
		segment.EndLng = result.endLng
	}
	return result.fingerprint, nil
}

// applyRlog anonymizes the full log. Drives worth keeping get the
// anonymized copy stored and referenced; too-short or unidentified
// drives keep a reference to the raw upload, which is never served
// outside the owning device's account.
func (w *Worker) applyRlog(ctx context.Context, job Job, number int, segment *store.Segment) error {
	compressed, err := w.blobs.Get(ctx, job.FileURL)
	if err != nil {
		return fmt.Errorf("fetching rlog %s: %w", job.FileURL, err)
	}
	buf, err := blobstore.DecompressZstd(compressed)
	if err != nil {
		return fmt.Errorf("decompressing rlog %s: %w", job.FileURL, err)
	}

	anon, keep, err := anonymizeRlog(buf)
	if err != nil {
		return fmt.Errorf("anonymizing rlog %s: %w", job.FileURL, err)
	}
	if !keep {
		segment.RlogURL = job.FileURL
		return nil
	}

	anonKey := blobstore.Key(job.DongleID, job.Timestamp, number, blobstore.SuffixRlogAnon)
	if err := w.blobs.Put(ctx, anonKey, anon, "application/octet-stream"); err != nil {
		return fmt.Errorf("storing anonymized rlog: %w", err)
	}
	segment.RlogURL = anonKey
	return nil
}

// applyQcam records the preview video URL and probes its duration.
// A video that fails to parse still gets its URL recorded; playback
// degrades to an unknown duration rather than the upload retrying
// forever against a corrupt file.
func (w *Worker) applyQcam(ctx context.Context, job Job, segment *store.Segment) error {
	segment.QcamURL = job.FileURL
	segment.QcamDuration = 0

	data, err := w.blobs.Get(ctx, job.FileURL)
	if err != nil {
		return fmt.Errorf("fetching qcam %s: %w", job.FileURL, err)
	}
	duration, err := probeMP4Duration(data)
	if err != nil {
		w.logger.Warn("qcam duration probe failed", "file_url", job.FileURL, "error", err)
		return nil
	}
	segment.QcamDuration = duration
	return nil
}
