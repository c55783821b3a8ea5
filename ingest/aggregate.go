// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import "github.com/roadlog-foundation/roadlog/lib/store"

// segmentMillis is the nominal wall-clock length of one segment. Used
// to back-date the route start from the first GPS-bearing segment when
// segment zero itself has no fix yet.
const segmentMillis = 60_000

// recomputeRouteAggregates rewrites every aggregate field of route
// from the full persisted segment set. It is a pure function of its
// inputs: calling it twice with the same segments yields the same
// route, which is what makes concurrent last-writer-wins commits
// self-healing — the next commit recomputes from current truth.
//
// segments must be ordered by segment number (the
// ListSegmentsByRoute contract). fingerprint, when non-empty, is the
// platform identified by the qlog just processed.
func recomputeRouteAggregates(route *store.Route, segments []store.Segment, fingerprint string) {
	route.MaxRlog = -1
	route.MaxQlog = -1
	route.MaxFcam = -1
	route.MaxDcam = -1
	route.MaxEcam = -1
	route.MaxQcam = -1
	route.DistanceMiles = 0
	route.HasGps = false
	route.StartMillis = 0
	route.EndMillis = 0
	route.StartLat = 0
	route.StartLng = 0
	route.EndLat = 0
	route.EndLng = 0

	for _, seg := range segments {
		if seg.RlogURL != "" {
			route.MaxRlog = seg.Number
		}
		if seg.QlogURL != "" {
			route.MaxQlog = seg.Number
		}
		if seg.FcamURL != "" {
			route.MaxFcam = seg.Number
		}
		if seg.DcamURL != "" {
			route.MaxDcam = seg.Number
		}
		if seg.EcamURL != "" {
			route.MaxEcam = seg.Number
		}
		if seg.QcamURL != "" {
			route.MaxQcam = seg.Number
		}

		route.DistanceMiles += seg.DistanceMiles

		if seg.HasGps {
			if !route.HasGps {
				route.HasGps = true
				route.StartLat = seg.StartLat
				route.StartLng = seg.StartLng
			}
			// Every GPS-bearing segment re-derives the route start
			// from its own fix, back-dated by the nominal length of
			// the segments before it. Iterated in segment order, the
			// last derivation stands.
			route.StartMillis = seg.StartMillis - int64(seg.Number)*segmentMillis
			route.EndLat = seg.EndLat
			route.EndLng = seg.EndLng
		}
		if seg.EndMillis > route.EndMillis {
			route.EndMillis = seg.EndMillis
		}
	}

	if route.StartMillis == 0 {
		// No GPS-bearing segment yet: fall back to the earliest coarse
		// segment start.
		for _, seg := range segments {
			if seg.StartMillis != 0 && (route.StartMillis == 0 || seg.StartMillis < route.StartMillis) {
				route.StartMillis = seg.StartMillis
			}
		}
	}

	if fingerprint != "" {
		route.Platform = fingerprint
	}
}
