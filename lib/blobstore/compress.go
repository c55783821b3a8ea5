// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// compressionTag identifies the algorithm a stored blob was
// compressed with. Tags are stored in blob headers on disk — the
// values are format constants, never renumber.
type compressionTag uint8

const (
	// compressionNone marks data stored as-is. Used for content that
	// is already compressed (JPEG sprites, HEVC video, zstd segment
	// uploads), where recompressing burns CPU for nothing.
	compressionNone compressionTag = 0

	// compressionLZ4 is the fast default for binary data whose
	// compressibility is unknown.
	compressionLZ4 compressionTag = 1

	// compressionZstd is used for text-like content — unlog dumps and
	// coordinate JSON compress 3-5x.
	compressionZstd compressionTag = 2
)

// zstdEncoder and zstdDecoder are shared across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("blobstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("blobstore: zstd decoder initialization failed: " + err.Error())
	}
}

// selectCompression picks the algorithm for a value. Known text-like
// content types go straight to zstd; everything else gets a cheap
// probe, falling back to uncompressed storage when the ratio is not
// worth the decode cost.
func selectCompression(value []byte, contentType string) compressionTag {
	switch contentType {
	case "text/plain", "application/json", "application/x-ndjson", "text/csv":
		return compressionZstd
	case "image/jpeg", "video/mp2t", "video/mp4", "application/zstd":
		return compressionNone
	}

	if len(value) == 0 {
		return compressionNone
	}

	compressed := zstdEncoder.EncodeAll(value, nil)
	ratio := float64(len(value)) / float64(len(compressed))
	switch {
	case ratio >= 1.5:
		return compressionZstd
	case ratio >= 1.1:
		return compressionLZ4
	default:
		return compressionNone
	}
}

// compress applies tag to value. For lz4, incompressible input falls
// back to compressionNone — the returned tag is authoritative.
func compress(value []byte, tag compressionTag) ([]byte, compressionTag, error) {
	switch tag {
	case compressionNone:
		return value, compressionNone, nil

	case compressionLZ4:
		bound := lz4.CompressBlockBound(len(value))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(value, destination, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
		if written == 0 || written >= len(value) {
			return value, compressionNone, nil
		}
		return destination[:written], compressionLZ4, nil

	case compressionZstd:
		compressed := zstdEncoder.EncodeAll(value, nil)
		if len(compressed) >= len(value) {
			return value, compressionNone, nil
		}
		return compressed, compressionZstd, nil

	default:
		return nil, 0, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// decompress reverses compress. uncompressedSize must match the
// original length exactly; a mismatch means the blob is corrupt.
func decompress(stored []byte, tag compressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case compressionNone:
		if len(stored) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed blob: size %d does not match expected %d",
				len(stored), uncompressedSize)
		}
		return stored, nil

	case compressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(stored, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case compressionZstd:
		result, err := zstdDecoder.DecodeAll(stored, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// DecompressZstd decompresses a zstd stream with no size hint. The
// download path uses this on device uploads, which arrive as raw zstd
// frames produced by the logger.
func DecompressZstd(compressed []byte) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return result, nil
}

// CompressZstd compresses data as a zstd stream, the format devices
// use for log uploads. Tests use this to synthesize uploads.
func CompressZstd(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, nil)
}
