// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package store

import "fmt"

// Device is a registered dash device. Rows are created by the device
// pairing flow and mutated by the relay (Online); the ingestion
// pipeline only reads them to authorize uploads.
type Device struct {
	DongleID   string
	Registered bool
	Online     bool
}

// Route is one trip: every segment a device recorded between going
// on-road and off-road. All fields except Name/DongleID/Timestamp are
// aggregates — pure functions of the route's current segment set at
// the time of the last recompute. They may be transiently stale while
// uploads are in flight, but never wrong for the segment set they
// were computed from.
type Route struct {
	// Name is the canonical route name, "<dongle_id>|<timestamp>".
	Name      string
	DongleID  string
	Timestamp string

	// Max* hold the highest segment number at which that artifact's
	// URL is set, or -1 when no segment has it. Playback clients use
	// these to know how far they can seek without listing segments.
	MaxRlog int
	MaxQlog int
	MaxFcam int
	MaxDcam int
	MaxEcam int
	MaxQcam int

	StartMillis int64
	EndMillis   int64
	StartLat    float64
	StartLng    float64
	EndLat      float64
	EndLng      float64

	// DistanceMiles is the sum of segment distances.
	DistanceMiles float64

	// Platform is the car fingerprint from the most recently
	// processed qlog, when one has been seen.
	Platform string

	// HasGps is true when any segment has a high-precision fix.
	HasGps bool

	CreateTime int64
}

// Segment is one ~1-minute chunk of a route. One URL field per
// artifact type; a field is empty until the corresponding file has
// been ingested. Number is stable once set.
type Segment struct {
	// Name is the canonical segment name,
	// "<dongle_id>|<timestamp>--<number>".
	Name      string
	RouteName string
	Number    int

	RlogURL   string
	QlogURL   string
	UnlogURL  string
	CoordsURL string

	FcamURL string
	DcamURL string
	EcamURL string
	QcamURL string

	// QcamDuration is the probed video duration in seconds, set only
	// alongside QcamURL.
	QcamDuration float64

	DistanceMiles float64

	StartMillis int64
	EndMillis   int64
	StartLat    float64
	StartLng    float64
	EndLat      float64
	EndLng      float64

	HasGps bool

	CreateTime int64
}

// RouteName builds the canonical route name for a device and capture
// timestamp.
func RouteName(dongleID, timestamp string) string {
	return fmt.Sprintf("%s|%s", dongleID, timestamp)
}

// SegmentName builds the canonical segment name from a route name and
// segment number.
func SegmentName(routeName string, number int) string {
	return fmt.Sprintf("%s--%d", routeName, number)
}

// NewRoute returns a minimally-populated route row for
// insert-if-absent: identity fields set, every aggregate at its zero
// value, max counters at -1 (no artifact seen).
func NewRoute(dongleID, timestamp string, createTime int64) *Route {
	return &Route{
		Name:       RouteName(dongleID, timestamp),
		DongleID:   dongleID,
		Timestamp:  timestamp,
		MaxRlog:    -1,
		MaxQlog:    -1,
		MaxFcam:    -1,
		MaxDcam:    -1,
		MaxEcam:    -1,
		MaxQcam:    -1,
		CreateTime: createTime,
	}
}

// NewSegment returns a minimally-populated segment row for
// insert-if-absent.
func NewSegment(routeName string, number int, createTime int64) *Segment {
	return &Segment{
		Name:       SegmentName(routeName, number),
		RouteName:  routeName,
		Number:     number,
		CreateTime: createTime,
	}
}
