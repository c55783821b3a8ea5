// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"fmt"
	"sync"
)

// task pairs a job with its completion callback.
type task struct {
	job  Job
	done func(error)
}

// Pool fans upload jobs out over a fixed number of worker goroutines.
// Jobs for the same segment are safe to run concurrently — the worker's
// locking makes them serialize — so the pool does no routing, just
// capacity.
type Pool struct {
	worker *Worker
	tasks  chan task
	wg     sync.WaitGroup

	// mu is held shared across a Submit's send so Close cannot close
	// the channel under an in-flight send.
	mu     sync.RWMutex
	closed bool
}

// NewPool starts size goroutines processing submitted jobs with
// worker. ctx bounds every job's processing; cancelling it makes
// in-flight jobs fail and pending Submits return.
func NewPool(ctx context.Context, worker *Worker, size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		worker: worker,
		tasks:  make(chan task),
	}
	for range size {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range p.tasks {
				t.done(p.worker.Process(ctx, t.job))
			}
		}()
	}
	return p
}

// Submit queues a job. done is invoked from a worker goroutine with
// the job's processing result; it must be non-nil. Submit blocks while
// all workers are busy, which is the intake backpressure: the caller
// stops pulling jobs from the queue when the pool is saturated.
func (p *Pool) Submit(ctx context.Context, job Job, done func(error)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("ingest: pool is closed")
	}

	select {
	case p.tasks <- task{job: job, done: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for in-flight ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	alreadyClosed := p.closed
	p.closed = true
	p.mu.Unlock()
	if alreadyClosed {
		return
	}

	close(p.tasks)
	p.wg.Wait()
}
