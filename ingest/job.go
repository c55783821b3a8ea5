// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"fmt"
	"strconv"
)

// FileType identifies which artifact of a segment an upload carries.
type FileType string

const (
	// FileRlog is the full-rate event log, anonymized before any
	// external exposure.
	FileRlog FileType = "rlog"

	// FileQlog is the sparse event log used for route overview, GPS
	// track, and thumbnails.
	FileQlog FileType = "qlog"

	FileFcam FileType = "fcam" // forward road camera
	FileDcam FileType = "dcam" // driver camera
	FileEcam FileType = "ecam" // wide road camera
	FileQcam FileType = "qcam" // low-res preview video
)

// Job is one uploaded-file event, produced by the upload handler and
// delivered through the external queue. All fields are required
// except CreateTime.
type Job struct {
	// FileURL is the blob store key the upload handler stored the
	// file under.
	FileURL string `json:"file_url"`

	// DongleID identifies the uploading device.
	DongleID string `json:"dongle_id"`

	// Timestamp is the route capture timestamp, e.g.
	// "2024-01-01--00-00-00".
	Timestamp string `json:"timestamp"`

	// Segment is the segment number as uploaded (decimal string).
	Segment string `json:"segment"`

	FileType FileType `json:"file_type"`

	// CreateTime is the upload receipt time in unix seconds.
	CreateTime int64 `json:"create_time"`
}

// SegmentNumber parses the segment number.
func (j Job) SegmentNumber() (int, error) {
	number, err := strconv.Atoi(j.Segment)
	if err != nil || number < 0 {
		return 0, fmt.Errorf("ingest: invalid segment number %q", j.Segment)
	}
	return number, nil
}

// Validate checks that the job's identifying fields are present and
// the segment number parses. The file type is deliberately NOT
// validated here: unrecognized types flow through to the worker's
// no-op arm (see Worker.applyFileType).
func (j Job) Validate() error {
	if j.FileURL == "" {
		return fmt.Errorf("ingest: job missing file_url")
	}
	if j.DongleID == "" {
		return fmt.Errorf("ingest: job missing dongle_id")
	}
	if j.Timestamp == "" {
		return fmt.Errorf("ingest: job missing timestamp")
	}
	if _, err := j.SegmentNumber(); err != nil {
		return err
	}
	return nil
}
