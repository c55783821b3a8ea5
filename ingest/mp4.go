// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"encoding/binary"
	"fmt"
)

// probeMP4Duration walks the top-level box structure of an MP4 file
// and returns the presentation duration in seconds from the movie
// header (moov/mvhd). Only the fields needed for the duration are
// parsed; everything else is skipped by box length.
func probeMP4Duration(data []byte) (float64, error) {
	moov, err := findBox(data, "moov")
	if err != nil {
		return 0, err
	}
	mvhd, err := findBox(moov, "mvhd")
	if err != nil {
		return 0, err
	}

	// mvhd body: 1 byte version, 3 bytes flags, then version-dependent
	// layout. Version 0 uses 32-bit times, version 1 uses 64-bit.
	if len(mvhd) < 4 {
		return 0, fmt.Errorf("mvhd box truncated")
	}
	switch version := mvhd[0]; version {
	case 0:
		if len(mvhd) < 20 {
			return 0, fmt.Errorf("mvhd v0 box truncated")
		}
		timescale := binary.BigEndian.Uint32(mvhd[12:16])
		duration := binary.BigEndian.Uint32(mvhd[16:20])
		if timescale == 0 {
			return 0, fmt.Errorf("mvhd timescale is zero")
		}
		return float64(duration) / float64(timescale), nil
	case 1:
		if len(mvhd) < 32 {
			return 0, fmt.Errorf("mvhd v1 box truncated")
		}
		timescale := binary.BigEndian.Uint32(mvhd[20:24])
		duration := binary.BigEndian.Uint64(mvhd[24:32])
		if timescale == 0 {
			return 0, fmt.Errorf("mvhd timescale is zero")
		}
		return float64(duration) / float64(timescale), nil
	default:
		return 0, fmt.Errorf("unsupported mvhd version %d", version)
	}
}

// findBox scans a sequence of ISO-BMFF boxes for the first box with
// the given four-character type and returns its body.
func findBox(data []byte, boxType string) ([]byte, error) {
	for len(data) >= 8 {
		size := binary.BigEndian.Uint32(data[0:4])
		name := string(data[4:8])
		header := uint64(8)
		boxSize := uint64(size)

		switch size {
		case 0:
			// Box extends to end of data.
			boxSize = uint64(len(data))
		case 1:
			if len(data) < 16 {
				return nil, fmt.Errorf("truncated large box header")
			}
			boxSize = binary.BigEndian.Uint64(data[8:16])
			header = 16
		}
		if boxSize < header || boxSize > uint64(len(data)) {
			return nil, fmt.Errorf("box %q has invalid size %d", name, boxSize)
		}
		if name == boxType {
			return data[header:boxSize], nil
		}
		data = data[boxSize:]
	}
	return nil, fmt.Errorf("box %q not found", boxType)
}
