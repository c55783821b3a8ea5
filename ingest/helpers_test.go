// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/roadlog-foundation/roadlog/lib/blobstore"
	"github.com/roadlog-foundation/roadlog/lib/event"
	"github.com/roadlog-foundation/roadlog/lib/lockmap"
	"github.com/roadlog-foundation/roadlog/lib/store"
)

// testEnv bundles a worker with direct handles on its backing stores,
// so tests can seed devices and inspect what ingestion persisted.
type testEnv struct {
	worker *Worker
	store  store.Store
	blobs  *blobstore.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.OpenSQLite(store.SQLiteConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	blobs := blobstore.NewMemory()
	worker := NewWorker(Config{
		Store:  s,
		Blobs:  blobs,
		Locks:  lockmap.NewRegistry(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &testEnv{worker: worker, store: s, blobs: blobs}
}

// registerDevice seeds a registered device row.
func (e *testEnv) registerDevice(t *testing.T, dongleID string) {
	t.Helper()
	err := e.store.RegisterDevice(context.Background(), &store.Device{
		DongleID:   dongleID,
		Registered: true,
	})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
}

// putUpload compresses data and stores it where the upload handler
// would, returning the job describing it.
func (e *testEnv) putUpload(t *testing.T, dongleID, timestamp, segment string, fileType FileType, suffix string, data []byte) Job {
	t.Helper()
	number, err := strconv.Atoi(segment)
	if err != nil {
		t.Fatalf("bad segment %q: %v", segment, err)
	}
	key := blobstore.Key(dongleID, timestamp, number, suffix)
	err = e.blobs.Put(context.Background(), key, blobstore.CompressZstd(data), "application/zstd")
	if err != nil {
		t.Fatalf("Put upload: %v", err)
	}
	return Job{
		FileURL:    key,
		DongleID:   dongleID,
		Timestamp:  timestamp,
		Segment:    segment,
		FileType:   fileType,
		CreateTime: 1700000000,
	}
}

// logBuilder synthesizes a framed device log, advancing the monotonic
// clock by a second per appended event.
type logBuilder struct {
	writer event.Writer
	mono   uint64
}

func (b *logBuilder) append(t *testing.T, kind event.Kind, payload any) uint64 {
	t.Helper()
	b.mono += 1_000_000_000
	if err := b.writer.Append(b.mono, kind, payload); err != nil {
		t.Fatalf("Append %s: %v", kind, err)
	}
	return b.mono
}

func (b *logBuilder) bytes() []byte { return b.writer.Bytes() }

// testJPEG encodes a solid-color image of the given size.
func testJPEG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}
