// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"fmt"

	"github.com/roadlog-foundation/roadlog/lib/event"
	"github.com/roadlog-foundation/roadlog/lib/geo"
)

// minRlogDistanceMeters is the shortest drive worth keeping a full
// event log for. Drives below this (parking shuffles, garage tests)
// are discarded rather than anonymized.
const minRlogDistanceMeters = 40.0

// anonymizeRlog copies the allow-listed events of a decompressed rlog
// into a fresh framed buffer. Location events are reduced to their
// non-positional fields; everything not on the allow list is dropped.
//
// The second return is false when the log is not worth keeping: the
// drive covered minRlogDistanceMeters or less, or no car platform was
// ever identified.
func anonymizeRlog(buf []byte) ([]byte, bool, error) {
	var out event.Writer
	var acc geo.Accumulator
	sawFingerprint := false

	reader := event.NewReader(buf)
	for {
		ev, ok := reader.Next()
		if !ok {
			break
		}

		if fix, isFix := ev.Gps(); isFix {
			// Consumed for the distance gate only; never copied.
			if fix.HasFix {
				acc.Advance(fix.Latitude, fix.Longitude)
			}
			continue
		}

		switch ev.Kind {
		case event.KindCarState, event.KindCarControl, event.KindControlsState,
			event.KindLongitudinalPlan, event.KindLiveCalibration,
			event.KindCan, event.KindSendCan:
			if err := out.AppendRaw(ev.LogMonoTime, ev.Kind, ev.Raw); err != nil {
				return nil, false, fmt.Errorf("copying %s event: %w", ev.Kind, err)
			}

		case event.KindCarParams:
			if params, isParams := ev.Payload.(*event.CarParams); isParams && params.CarFingerprint != "" {
				sawFingerprint = true
			}
			if err := out.AppendRaw(ev.LogMonoTime, ev.Kind, ev.Raw); err != nil {
				return nil, false, fmt.Errorf("copying carParams event: %w", err)
			}

		case event.KindLiveLocationKalman:
			kalman, isKalman := ev.Payload.(*event.LiveLocationKalman)
			if !isKalman {
				continue
			}
			reduced := event.ReducedKalman{
				VelocityCalibrated: kalman.VelocityCalibrated,
				OrientationNED:     kalman.OrientationNED,
				Valid:              kalman.Valid,
			}
			if err := out.Append(ev.LogMonoTime, event.KindLiveLocationKalman, reduced); err != nil {
				return nil, false, fmt.Errorf("reducing liveLocationKalman event: %w", err)
			}
		}
	}

	if acc.Meters() <= minRlogDistanceMeters || !sawFingerprint {
		return nil, false, nil
	}
	return out.Bytes(), true, nil
}
