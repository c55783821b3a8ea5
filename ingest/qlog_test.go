// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"strings"
	"testing"

	"github.com/roadlog-foundation/roadlog/lib/event"
)

func TestDecodeQlog(t *testing.T) {
	result := decodeQlog(buildQlog(t))

	if !result.hasGps {
		t.Fatal("hasGps = false")
	}
	if result.fingerprint != "TOYOTA COROLLA TSS2 2019" {
		t.Errorf("fingerprint = %q", result.fingerprint)
	}
	if len(result.thumbnails) != 1 {
		t.Errorf("len(thumbnails) = %d, want 1", len(result.thumbnails))
	}
	if meters := result.acc.Meters(); meters < 95 || meters > 105 {
		t.Errorf("distance = %v m, want ~100", meters)
	}

	// The invalid fix widens the time bounds but contributes no
	// position: start fields come from the first valid fix.
	if result.startMillis != 1714555001000 {
		t.Errorf("startMillis = %d, want first valid fix", result.startMillis)
	}
	if result.minMillis != 1714555000000 {
		t.Errorf("minMillis = %d, want invalid fix time", result.minMillis)
	}
	if result.maxMillis != 1714555002000 {
		t.Errorf("maxMillis = %d", result.maxMillis)
	}

	if len(result.coords) != 2 {
		t.Fatalf("len(coords) = %d, want 2", len(result.coords))
	}
	// Coordinate T is elapsed drive time, relative to the deviceState
	// started event.
	if result.coords[0].T != 3.0 {
		t.Errorf("coords[0].T = %v, want 3", result.coords[0].T)
	}
	if result.coords[1].T != 4.0 {
		t.Errorf("coords[1].T = %v, want 4", result.coords[1].T)
	}
}

// TestDecodeQlogNoEpochNoCoords: a qlog with fixes but no on-road
// deviceState event yields distance and positions but no coordinate
// rows, since their time axis would have no origin.
func TestDecodeQlogNoEpochNoCoords(t *testing.T) {
	var b logBuilder
	b.append(t, event.KindGpsLocation, event.GpsFix{
		HasFix: true, Latitude: 52.52, Longitude: 13.40, UnixMillis: 1000,
	})
	b.append(t, event.KindGpsLocation, event.GpsFix{
		HasFix: true, Latitude: 52.53, Longitude: 13.40, UnixMillis: 2000,
	})

	result := decodeQlog(b.bytes())
	if len(result.coords) != 0 {
		t.Errorf("len(coords) = %d, want 0 without an epoch", len(result.coords))
	}
	if !result.hasGps {
		t.Error("hasGps = false")
	}
	if result.acc.Meters() < 1000 {
		t.Errorf("distance = %v m, want >1 km", result.acc.Meters())
	}
}

func TestDecodeQlogEmptyAndTruncated(t *testing.T) {
	result := decodeQlog(nil)
	if result.hasGps || len(result.coords) != 0 || len(result.thumbnails) != 0 {
		t.Errorf("decode of empty buffer produced data: %+v", result)
	}

	full := buildQlog(t)
	truncated := decodeQlog(full[:len(full)/2])
	if truncated.fingerprint != "TOYOTA COROLLA TSS2 2019" {
		t.Errorf("truncated decode lost the early fingerprint: %q", truncated.fingerprint)
	}
}

func TestDecodeQlogUnlogContent(t *testing.T) {
	var b logBuilder
	b.append(t, event.KindGpsLocation, event.GpsFix{
		HasFix: true, Latitude: 52.52, Longitude: 13.40, SpeedMPS: 10, UnixMillis: 1000,
	})
	b.append(t, event.KindLogMessage, event.LogText{Text: "camera started"})
	b.append(t, event.KindModelOutput, nil)

	unlog := decodeQlog(b.bytes()).unlog.String()
	if !strings.Contains(unlog, "gpsLocation") {
		t.Errorf("unlog missing gpsLocation:\n%s", unlog)
	}
	if !strings.Contains(unlog, "camera started") {
		t.Errorf("unlog missing log message text:\n%s", unlog)
	}
	if strings.Contains(unlog, "modelV2") {
		t.Errorf("unlog contains model output:\n%s", unlog)
	}
}
