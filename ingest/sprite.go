// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"runtime"
	"sync"

	"golang.org/x/image/draw"
)

const (
	spriteCellW = 128
	spriteCellH = 80
	spriteJpegQ = 80
)

// buildSprite decodes the segment's thumbnail JPEGs, scales each to a
// fixed cell, and composites them left to right into a single JPEG
// strip, one cell per thumbnail. A segment with no thumbnails yields
// (nil, nil): there is no empty sprite, the artifact simply does not
// exist.
//
// Thumbnails that fail to decode are skipped; their cell is left
// black so the strip's time axis stays aligned.
func buildSprite(thumbnails [][]byte) ([]byte, error) {
	if len(thumbnails) == 0 {
		return nil, nil
	}

	strip := image.NewRGBA(image.Rect(0, 0, spriteCellW*len(thumbnails), spriteCellH))

	workers := runtime.NumCPU()
	if workers > len(thumbnails) {
		workers = len(thumbnails)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				src, _, err := image.Decode(bytes.NewReader(thumbnails[i]))
				if err != nil {
					continue
				}
				cell := image.Rect(i*spriteCellW, 0, (i+1)*spriteCellW, spriteCellH)
				draw.ApproxBiLinear.Scale(strip, cell, src, src.Bounds(), draw.Src, nil)
			}
		}()
	}
	for i := range thumbnails {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var out bytes.Buffer
	if err := jpeg.Encode(&out, strip, &jpeg.Options{Quality: spriteJpegQ}); err != nil {
		return nil, fmt.Errorf("encoding sprite: %w", err)
	}
	return out.Bytes(), nil
}
