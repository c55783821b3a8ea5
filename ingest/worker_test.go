// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/roadlog-foundation/roadlog/lib/blobstore"
	"github.com/roadlog-foundation/roadlog/lib/event"
	"github.com/roadlog-foundation/roadlog/lib/store"
)

const (
	testDongle    = "dongle01"
	testTimestamp = "2024-05-01--09-30-00"
)

// buildQlog synthesizes a short on-road qlog: device start, platform
// detection, an invalid fix, two valid fixes ~100 m apart, and one
// thumbnail.
func buildQlog(t *testing.T) []byte {
	t.Helper()
	var b logBuilder
	b.append(t, event.KindDeviceState, event.DeviceState{Started: true})
	b.append(t, event.KindCarParams, event.CarParams{
		CarName:        "Corolla",
		CarFingerprint: "TOYOTA COROLLA TSS2 2019",
	})
	b.append(t, event.KindGpsLocation, event.GpsFix{
		HasFix:     false,
		UnixMillis: 1714555000000,
	})
	b.append(t, event.KindGpsLocation, event.GpsFix{
		HasFix:     true,
		Latitude:   52.5200,
		Longitude:  13.4050,
		SpeedMPS:   25.0,
		UnixMillis: 1714555001000,
	})
	b.append(t, event.KindGpsLocation, event.GpsFix{
		HasFix:     true,
		Latitude:   52.5209, // ~100 m north
		Longitude:  13.4050,
		SpeedMPS:   25.0,
		UnixMillis: 1714555002000,
	})
	b.append(t, event.KindThumbnail, event.Thumbnail{
		FrameID: 1200,
		Jpeg:    testJPEG(t, 320, 160, color.RGBA{R: 200, A: 255}),
	})
	return b.bytes()
}

func TestProcessQlog(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, testDongle)
	ctx := context.Background()

	job := env.putUpload(t, testDongle, testTimestamp, "0", FileQlog, blobstore.SuffixQlog, buildQlog(t))
	if err := env.worker.Process(ctx, job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	routeName := store.RouteName(testDongle, testTimestamp)
	segment, err := env.store.FindSegment(ctx, store.SegmentName(routeName, 0))
	if err != nil {
		t.Fatalf("FindSegment: %v", err)
	}
	if segment.QlogURL != job.FileURL {
		t.Errorf("QlogURL = %q, want %q", segment.QlogURL, job.FileURL)
	}
	if !segment.HasGps {
		t.Error("segment HasGps = false, want true")
	}
	if segment.DistanceMiles < 0.055 || segment.DistanceMiles > 0.07 {
		t.Errorf("DistanceMiles = %v, want ~0.062", segment.DistanceMiles)
	}
	if segment.StartMillis != 1714555001000 {
		t.Errorf("StartMillis = %d, want first valid fix time", segment.StartMillis)
	}
	if segment.EndMillis != 1714555002000 {
		t.Errorf("EndMillis = %d, want last fix time", segment.EndMillis)
	}
	if segment.StartLat != 52.5200 || segment.EndLat != 52.5209 {
		t.Errorf("positions = (%v, %v), want first and last fix", segment.StartLat, segment.EndLat)
	}

	// Derived artifacts.
	unlog, err := env.blobs.Get(ctx, segment.UnlogURL)
	if err != nil {
		t.Fatalf("Get unlog: %v", err)
	}
	if !strings.Contains(string(unlog), "gpsLocation") {
		t.Errorf("unlog does not mention gpsLocation:\n%s", unlog)
	}

	coordsJSON, err := env.blobs.Get(ctx, segment.CoordsURL)
	if err != nil {
		t.Fatalf("Get coords: %v", err)
	}
	var coords []Coordinate
	if err := json.Unmarshal(coordsJSON, &coords); err != nil {
		t.Fatalf("decoding coords: %v", err)
	}
	if len(coords) != 2 {
		t.Fatalf("len(coords) = %d, want 2", len(coords))
	}
	if coords[0].Dist != 0 {
		t.Errorf("first coord Dist = %v, want 0", coords[0].Dist)
	}
	if coords[1].Dist < 95 || coords[1].Dist > 105 {
		t.Errorf("second coord Dist = %v, want ~100", coords[1].Dist)
	}
	if coords[1].T <= coords[0].T {
		t.Errorf("coord times not increasing: %v then %v", coords[0].T, coords[1].T)
	}

	spriteKey := blobstore.Key(testDongle, testTimestamp, 0, blobstore.SuffixSprite)
	if _, err := env.blobs.Get(ctx, spriteKey); err != nil {
		t.Errorf("Get sprite: %v", err)
	}

	// Route aggregates.
	route, err := env.store.FindRoute(ctx, routeName)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if route.MaxQlog != 0 || route.MaxRlog != -1 {
		t.Errorf("MaxQlog = %d, MaxRlog = %d, want 0 and -1", route.MaxQlog, route.MaxRlog)
	}
	if route.Platform != "TOYOTA COROLLA TSS2 2019" {
		t.Errorf("Platform = %q", route.Platform)
	}
	if !route.HasGps {
		t.Error("route HasGps = false, want true")
	}
	if route.StartMillis != 1714555001000 {
		t.Errorf("route StartMillis = %d", route.StartMillis)
	}
}

func TestProcessUnknownDeviceIsSilentNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job := env.putUpload(t, "ghost", testTimestamp, "0", FileQlog, blobstore.SuffixQlog, buildQlog(t))
	if err := env.worker.Process(ctx, job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	_, err := env.store.FindRoute(ctx, store.RouteName("ghost", testTimestamp))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindRoute = %v, want ErrNotFound", err)
	}
}

func TestProcessUnregisteredDeviceIsSilentNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	err := env.store.RegisterDevice(ctx, &store.Device{DongleID: "pending", Registered: false})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}

	job := env.putUpload(t, "pending", testTimestamp, "0", FileQlog, blobstore.SuffixQlog, buildQlog(t))
	if err := env.worker.Process(ctx, job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	_, err = env.store.FindRoute(ctx, store.RouteName("pending", testTimestamp))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindRoute = %v, want ErrNotFound", err)
	}
}

func TestProcessCameraFiles(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, testDongle)
	ctx := context.Background()

	cases := []struct {
		fileType FileType
		suffix   string
	}{
		{FileFcam, blobstore.SuffixFcam},
		{FileDcam, blobstore.SuffixDcam},
		{FileEcam, blobstore.SuffixEcam},
	}
	for _, tc := range cases {
		key := blobstore.Key(testDongle, testTimestamp, 3, tc.suffix)
		if err := env.blobs.Put(ctx, key, []byte("hevc"), "video/hevc"); err != nil {
			t.Fatalf("Put: %v", err)
		}
		job := Job{
			FileURL:  key,
			DongleID: testDongle, Timestamp: testTimestamp,
			Segment: "3", FileType: tc.fileType,
		}
		if err := env.worker.Process(ctx, job); err != nil {
			t.Fatalf("Process %s: %v", tc.fileType, err)
		}
	}

	routeName := store.RouteName(testDongle, testTimestamp)
	segment, err := env.store.FindSegment(ctx, store.SegmentName(routeName, 3))
	if err != nil {
		t.Fatalf("FindSegment: %v", err)
	}
	if segment.FcamURL == "" || segment.DcamURL == "" || segment.EcamURL == "" {
		t.Errorf("camera URLs incomplete: %+v", segment)
	}

	route, err := env.store.FindRoute(ctx, routeName)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if route.MaxFcam != 3 || route.MaxDcam != 3 || route.MaxEcam != 3 {
		t.Errorf("camera maxes = %d/%d/%d, want 3/3/3", route.MaxFcam, route.MaxDcam, route.MaxEcam)
	}
}

// TestProcessSegmentsOutOfOrder ingests a later segment before an
// earlier one; the recompute must leave the max counters at the
// highest segment number regardless of arrival order.
func TestProcessSegmentsOutOfOrder(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, testDongle)
	ctx := context.Background()

	for _, segment := range []string{"2", "0"} {
		job := env.putUpload(t, testDongle, testTimestamp, segment, FileQlog, blobstore.SuffixQlog, buildQlog(t))
		if err := env.worker.Process(ctx, job); err != nil {
			t.Fatalf("Process segment %s: %v", segment, err)
		}
	}

	routeName := store.RouteName(testDongle, testTimestamp)
	listed, err := env.store.ListSegmentsByRoute(ctx, routeName)
	if err != nil {
		t.Fatalf("ListSegmentsByRoute: %v", err)
	}
	if len(listed) != 2 || listed[0].Number != 0 || listed[1].Number != 2 {
		t.Fatalf("listed segments = %+v, want numbers 0 and 2", listed)
	}

	route, err := env.store.FindRoute(ctx, routeName)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if route.MaxQlog != 2 {
		t.Errorf("MaxQlog = %d, want 2", route.MaxQlog)
	}
	if route.DistanceMiles < 0.11 || route.DistanceMiles > 0.14 {
		t.Errorf("DistanceMiles = %v, want both segments summed", route.DistanceMiles)
	}
}

func TestProcessQcamProbesDuration(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, testDongle)
	ctx := context.Background()

	key := blobstore.Key(testDongle, testTimestamp, 0, blobstore.SuffixQcam)
	if err := env.blobs.Put(ctx, key, buildTestMP4(1000, 60000), "video/mp4"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	job := Job{
		FileURL:  key,
		DongleID: testDongle, Timestamp: testTimestamp,
		Segment: "0", FileType: FileQcam,
	}
	if err := env.worker.Process(ctx, job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	segment, err := env.store.FindSegment(ctx, store.SegmentName(store.RouteName(testDongle, testTimestamp), 0))
	if err != nil {
		t.Fatalf("FindSegment: %v", err)
	}
	if segment.QcamURL != key {
		t.Errorf("QcamURL = %q, want %q", segment.QcamURL, key)
	}
	if segment.QcamDuration != 60.0 {
		t.Errorf("QcamDuration = %v, want 60", segment.QcamDuration)
	}
}

func TestProcessUnknownFileTypeChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, testDongle)
	ctx := context.Background()

	job := Job{
		FileURL:  "some/key",
		DongleID: testDongle, Timestamp: testTimestamp,
		Segment: "0", FileType: FileType("bootlog"),
	}
	if err := env.worker.Process(ctx, job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// The route and segment rows exist (reconciliation ran) but the
	// segment carries no URLs and the route no artifact maxes.
	segment, err := env.store.FindSegment(ctx, store.SegmentName(store.RouteName(testDongle, testTimestamp), 0))
	if err != nil {
		t.Fatalf("FindSegment: %v", err)
	}
	if segment.QlogURL != "" || segment.RlogURL != "" {
		t.Errorf("unexpected URLs on segment: %+v", segment)
	}
}

func TestProcessInvalidJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bad := []Job{
		{},
		{FileURL: "k", DongleID: "d", Timestamp: "t", Segment: "-1", FileType: FileQlog},
		{FileURL: "k", DongleID: "d", Timestamp: "t", Segment: "abc", FileType: FileQlog},
		{FileURL: "k", DongleID: "d", Segment: "0", FileType: FileQlog},
	}
	for _, job := range bad {
		if err := env.worker.Process(ctx, job); err == nil {
			t.Errorf("Process(%+v) = nil, want error", job)
		}
	}
}

// TestProcessConcurrentFileTypes runs every file type of one segment
// concurrently and checks nothing is lost to interleaving.
func TestProcessConcurrentFileTypes(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, testDongle)
	ctx := context.Background()

	jobs := []Job{
		env.putUpload(t, testDongle, testTimestamp, "0", FileQlog, blobstore.SuffixQlog, buildQlog(t)),
		env.putUpload(t, testDongle, testTimestamp, "0", FileRlog, blobstore.SuffixRlog, buildRlog(t, 10)),
	}
	for _, tc := range []struct {
		fileType FileType
		suffix   string
		data     []byte
	}{
		{FileFcam, blobstore.SuffixFcam, []byte("hevc")},
		{FileDcam, blobstore.SuffixDcam, []byte("hevc")},
		{FileEcam, blobstore.SuffixEcam, []byte("hevc")},
		{FileQcam, blobstore.SuffixQcam, buildTestMP4(1000, 60000)},
	} {
		key := blobstore.Key(testDongle, testTimestamp, 0, tc.suffix)
		if err := env.blobs.Put(ctx, key, tc.data, ""); err != nil {
			t.Fatalf("Put: %v", err)
		}
		jobs = append(jobs, Job{
			FileURL:  key,
			DongleID: testDongle, Timestamp: testTimestamp,
			Segment: "0", FileType: tc.fileType,
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(jobs))
	for i, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = env.worker.Process(ctx, job)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Process %s: %v", jobs[i].FileType, err)
		}
	}

	routeName := store.RouteName(testDongle, testTimestamp)
	segment, err := env.store.FindSegment(ctx, store.SegmentName(routeName, 0))
	if err != nil {
		t.Fatalf("FindSegment: %v", err)
	}
	if segment.QlogURL == "" || segment.RlogURL == "" || segment.FcamURL == "" ||
		segment.DcamURL == "" || segment.EcamURL == "" || segment.QcamURL == "" {
		t.Errorf("missing URLs after concurrent ingestion: %+v", segment)
	}

	route, err := env.store.FindRoute(ctx, routeName)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	for name, got := range map[string]int{
		"MaxRlog": route.MaxRlog, "MaxQlog": route.MaxQlog,
		"MaxFcam": route.MaxFcam, "MaxDcam": route.MaxDcam,
		"MaxEcam": route.MaxEcam, "MaxQcam": route.MaxQcam,
	} {
		if got != 0 {
			t.Errorf("%s = %d, want 0", name, got)
		}
	}
}

func TestPoolProcessesSubmittedJobs(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, testDongle)
	ctx := context.Background()

	pool := NewPool(ctx, env.worker, 4)
	defer pool.Close()

	const segments = 6
	var wg sync.WaitGroup
	errs := make([]error, segments)
	for i := range segments {
		job := env.putUpload(t, testDongle, testTimestamp, strconv.Itoa(i), FileQlog, blobstore.SuffixQlog, buildQlog(t))
		wg.Add(1)
		if err := pool.Submit(ctx, job, func(err error) {
			errs[i] = err
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("segment %d: %v", i, err)
		}
	}

	listed, err := env.store.ListSegmentsByRoute(ctx, store.RouteName(testDongle, testTimestamp))
	if err != nil {
		t.Fatalf("ListSegmentsByRoute: %v", err)
	}
	if len(listed) != segments {
		t.Errorf("len(segments) = %d, want %d", len(listed), segments)
	}

	pool.Close()
	if err := pool.Submit(ctx, Job{}, func(error) {}); err == nil {
		t.Error("Submit after Close = nil, want error")
	}
}
