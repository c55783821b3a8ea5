// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roadlog-foundation/roadlog/lib/blobstore"
)

// artifactKeys are the blob keys of the derived artifacts one qlog
// ingestion produced. Sprite is empty when the segment carried no
// thumbnails.
type artifactKeys struct {
	Unlog  string
	Coords string
	Sprite string
}

// uploadArtifacts stores the derived artifacts of one qlog pass:
// the human-readable unlog, the GPS track JSON, and the thumbnail
// sprite. The first failure aborts — the job retries as a whole and
// every Put is idempotent under its deterministic key.
func (w *Worker) uploadArtifacts(ctx context.Context, job Job, number int, result *qlogResult) (artifactKeys, error) {
	var keys artifactKeys

	keys.Unlog = blobstore.Key(job.DongleID, job.Timestamp, number, blobstore.SuffixUnlog)
	if err := w.blobs.Put(ctx, keys.Unlog, []byte(result.unlog.String()), "text/plain"); err != nil {
		return keys, fmt.Errorf("storing unlog: %w", err)
	}

	coords := result.coords
	if coords == nil {
		coords = []Coordinate{}
	}
	coordsJSON, err := json.Marshal(coords)
	if err != nil {
		return keys, fmt.Errorf("encoding coords: %w", err)
	}
	keys.Coords = blobstore.Key(job.DongleID, job.Timestamp, number, blobstore.SuffixCoords)
	if err := w.blobs.Put(ctx, keys.Coords, coordsJSON, "application/json"); err != nil {
		return keys, fmt.Errorf("storing coords: %w", err)
	}

	sprite, err := buildSprite(result.thumbnails)
	if err != nil {
		return keys, fmt.Errorf("building sprite: %w", err)
	}
	if sprite != nil {
		keys.Sprite = blobstore.Key(job.DongleID, job.Timestamp, number, blobstore.SuffixSprite)
		if err := w.blobs.Put(ctx, keys.Sprite, sprite, "image/jpeg"); err != nil {
			return keys, fmt.Errorf("storing sprite: %w", err)
		}
	}

	return keys, nil
}
