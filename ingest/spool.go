// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roadlog-foundation/roadlog/lib/clock"
)

// Spool feeds the worker pool from a directory of job files. The
// upload handler drops one JSON file per upload; the spool scans the
// directory on a fixed interval, submits each job, and deletes the
// file once its job succeeds. Failed jobs keep their file and are
// resubmitted on a later scan.
//
// Files that do not parse as jobs are renamed with a ".malformed"
// suffix so they stop matching the scan and can be inspected.
type Spool struct {
	dir      string
	pool     *Pool
	clk      clock.Clock
	interval time.Duration
	logger   *slog.Logger

	// inflight guards against resubmitting a file whose job is still
	// being processed when the next scan runs.
	mu       sync.Mutex
	inflight map[string]bool
}

// NewSpool returns a Spool reading job files from dir.
func NewSpool(dir string, pool *Pool, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Spool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spool{
		dir:      dir,
		pool:     pool,
		clk:      clk,
		interval: interval,
		logger:   logger,
		inflight: make(map[string]bool),
	}
}

// Run scans the spool directory until ctx is cancelled. The first scan
// happens immediately; later ones on the poll interval.
func (s *Spool) Run(ctx context.Context) error {
	ticker := s.clk.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.scan(ctx); err != nil {
			s.logger.Error("spool scan failed", "dir", s.dir, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// scan submits every job file not already in flight.
func (s *Spool) scan(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading spool dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())

		s.mu.Lock()
		busy := s.inflight[path]
		if !busy {
			s.inflight[path] = true
		}
		s.mu.Unlock()
		if busy {
			continue
		}

		job, err := s.readJob(path)
		if err != nil {
			s.quarantine(path, err)
			s.finish(path)
			continue
		}

		err = s.pool.Submit(ctx, job, func(processErr error) {
			defer s.finish(path)
			if processErr != nil {
				s.logger.Error("job failed, leaving for retry",
					"file", path, "error", processErr)
				return
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Error("removing completed job file", "file", path, "error", err)
			}
		})
		if err != nil {
			s.finish(path)
			return err
		}
	}
	return nil
}

func (s *Spool) readJob(path string) (Job, error) {
	var job Job
	data, err := os.ReadFile(path)
	if err != nil {
		return job, err
	}
	if err := json.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("parsing job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return job, err
	}
	return job, nil
}

// quarantine renames a malformed job file out of the scan pattern.
func (s *Spool) quarantine(path string, cause error) {
	s.logger.Error("quarantining malformed job file", "file", path, "error", cause)
	if err := os.Rename(path, path+".malformed"); err != nil {
		s.logger.Error("renaming malformed job file", "file", path, "error", err)
	}
}

func (s *Spool) finish(path string) {
	s.mu.Lock()
	delete(s.inflight, path)
	s.mu.Unlock()
}
