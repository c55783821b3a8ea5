// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"encoding/binary"
	"testing"
)

// buildTestMP4 assembles a minimal ftyp+moov file whose mvhd (version
// 0) declares the given timescale and duration.
func buildTestMP4(timescale uint32, duration uint32) []byte {
	mvhdBody := make([]byte, 100)
	// version 0, flags 0, creation/modification times 0.
	binary.BigEndian.PutUint32(mvhdBody[12:16], timescale)
	binary.BigEndian.PutUint32(mvhdBody[16:20], duration)
	mvhd := box("mvhd", mvhdBody)
	moov := box("moov", mvhd)
	ftyp := box("ftyp", []byte("isom\x00\x00\x02\x00isomiso2"))
	return append(ftyp, moov...)
}

func box(name string, body []byte) []byte {
	out := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(body)))
	copy(out[4:8], name)
	return append(out, body...)
}

func TestProbeMP4Duration(t *testing.T) {
	duration, err := probeMP4Duration(buildTestMP4(1000, 61500))
	if err != nil {
		t.Fatalf("probeMP4Duration: %v", err)
	}
	if duration != 61.5 {
		t.Errorf("duration = %v, want 61.5", duration)
	}
}

func TestProbeMP4DurationVersion1(t *testing.T) {
	mvhdBody := make([]byte, 112)
	mvhdBody[0] = 1
	binary.BigEndian.PutUint32(mvhdBody[20:24], 90000)
	binary.BigEndian.PutUint64(mvhdBody[24:32], 90000*45)
	data := box("moov", box("mvhd", mvhdBody))

	duration, err := probeMP4Duration(data)
	if err != nil {
		t.Fatalf("probeMP4Duration: %v", err)
	}
	if duration != 45.0 {
		t.Errorf("duration = %v, want 45", duration)
	}
}

func TestProbeMP4DurationErrors(t *testing.T) {
	cases := map[string][]byte{
		"empty":          nil,
		"no moov":        box("ftyp", []byte("isom")),
		"no mvhd":        box("moov", box("trak", nil)),
		"zero timescale": buildTestMP4(0, 100),
		"garbage":        []byte("not an mp4 at all, just text"),
	}
	for name, data := range cases {
		if _, err := probeMP4Duration(data); err == nil {
			t.Errorf("%s: want error", name)
		}
	}
}
