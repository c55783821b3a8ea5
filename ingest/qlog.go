// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"strings"

	"github.com/roadlog-foundation/roadlog/lib/event"
	"github.com/roadlog-foundation/roadlog/lib/geo"
)

// Coordinate is one row of the derived GPS track, serialized to the
// coords.json artifact. T is seconds since the drive went on-road;
// Dist is the incremental distance in meters added by this fix.
type Coordinate struct {
	T     float64 `json:"t"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Speed float64 `json:"speed"`
	Dist  float64 `json:"dist"`
}

// qlogResult is everything one pass over a qlog produces: the
// coordinate track, the unlog dump, the thumbnail JPEGs, the segment
// position/time fields, and the car fingerprint.
type qlogResult struct {
	coords      []Coordinate
	unlog       strings.Builder
	thumbnails  [][]byte
	fingerprint string
	acc         geo.Accumulator

	// hasGps and the start fields are set by the first valid fix.
	hasGps      bool
	startLat    float64
	startLng    float64
	startMillis int64

	// endLat/endLng track the last valid fix.
	endLat float64
	endLng float64

	// minMillis/maxMillis are the coarse time bounds over all fixes,
	// valid or not. Invalid fixes carry a trustworthy wall clock even
	// when their position is garbage, so they still widen the bounds.
	minMillis int64
	maxMillis int64
}

// decodeQlog runs the sparse-log pass over a decompressed qlog
// buffer. It never fails: a truncated buffer simply yields less.
func decodeQlog(buf []byte) *qlogResult {
	result := &qlogResult{}

	// Monotonic timestamp of the "went on-road" deviceState event.
	// Coordinate rows are appended only once it is known, since their
	// T is elapsed drive time.
	var onRoadEpoch uint64
	var haveEpoch bool

	reader := event.NewReader(buf)
	for {
		ev, ok := reader.Next()
		if !ok {
			break
		}

		if fix, isFix := ev.Gps(); isFix {
			result.observeTimeBounds(fix.UnixMillis)
			result.unlog.WriteString(ev.Dump())
			result.unlog.WriteByte('\n')

			if !fix.HasFix {
				// Position is garbage without a fix; only the time
				// bounds above are used.
				continue
			}

			step := result.acc.Advance(fix.Latitude, fix.Longitude)
			if !result.hasGps {
				result.hasGps = true
				result.startLat = fix.Latitude
				result.startLng = fix.Longitude
				result.startMillis = fix.UnixMillis
			}
			result.endLat = fix.Latitude
			result.endLng = fix.Longitude

			if haveEpoch {
				result.coords = append(result.coords, Coordinate{
					T:     float64(ev.LogMonoTime-onRoadEpoch) / 1e9,
					Lat:   fix.Latitude,
					Lng:   fix.Longitude,
					Speed: fix.SpeedMPS,
					Dist:  step,
				})
			}
			continue
		}

		switch payload := ev.Payload.(type) {
		case *event.DeviceState:
			if payload.Started && !haveEpoch {
				onRoadEpoch = ev.LogMonoTime
				haveEpoch = true
			}

		case *event.Thumbnail:
			result.thumbnails = append(result.thumbnails, payload.Jpeg)

		case *event.CarParams:
			result.fingerprint = payload.CarFingerprint

		default:
			if interestingKind(ev.Kind) {
				result.unlog.WriteString(ev.Dump())
				result.unlog.WriteByte('\n')
			}
		}
	}
	return result
}

// interestingKind reports whether an event kind belongs in the unlog
// dump. GPS fixes, thumbnails, device state, and car params are
// handled by dedicated arms above; model outputs, process logs, and
// unknown kinds are noise at unlog granularity.
func interestingKind(kind event.Kind) bool {
	switch kind {
	case event.KindCarState, event.KindCarControl, event.KindControlsState,
		event.KindLongitudinalPlan, event.KindLiveCalibration,
		event.KindLiveLocationKalman, event.KindCan, event.KindSendCan,
		event.KindLogMessage, event.KindErrorLogMessage,
		event.KindPandaState, event.KindDriverMonitoring:
		return true
	}
	return false
}

// observeTimeBounds widens the coarse start/end wall-clock bounds.
func (r *qlogResult) observeTimeBounds(millis int64) {
	if millis == 0 {
		return
	}
	if r.minMillis == 0 || millis < r.minMillis {
		r.minMillis = millis
	}
	if millis > r.maxMillis {
		r.maxMillis = millis
	}
}

// segmentStartMillis returns the wall-clock start for the segment row:
// the first valid fix when there is one, otherwise the coarse lower
// bound.
func (r *qlogResult) segmentStartMillis() int64 {
	if r.hasGps {
		return r.startMillis
	}
	return r.minMillis
}
