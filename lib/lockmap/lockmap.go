// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package lockmap provides process-local, goroutine-cooperative mutual
// exclusion keyed by canonical name.
//
// The ingestion pipeline serializes work on a route or segment by
// acquiring its canonical name. Names are hashed to 32 bits and
// indexed into a fixed shard array, so the registry's memory is
// constant no matter how many distinct names pass through it. Two
// names that collide on a shard are serialized together — a collision
// only reduces concurrency, never correctness. Do not replace the
// shard array with a name-keyed map without accounting for unbounded
// growth across a fleet's worth of route names.
//
// A Registry is an injected value owned by the service instance, not
// a package-level singleton: tests construct isolated registries, and
// a second registry never contends with the first. One registry
// guards one deployment's state — running two ingestion processes
// against the same database is outside this package's guarantees.
//
// Locks are not reentrant. Acquiring a name already held by the same
// goroutine (or a name colliding with it) deadlocks. Callers must not
// nest acquisitions; the ingestion worker acquires the route lock and
// releases it before acquiring the segment lock for this reason.
package lockmap

import (
	"context"
	"sync"

	"github.com/zeebo/blake3"
)

// ShardCount is the size of the shard array. 4096 shards keeps the
// collision probability negligible at realistic ingest concurrency
// (hundreds of in-flight jobs) while the registry stays a few hundred
// KB regardless of fleet size.
const ShardCount = 4096

// hashKey is the BLAKE3 key for name hashing. Domain separation from
// other Roadlog BLAKE3 uses; the ASCII form makes the key obvious in
// a debugger.
var hashKey = [32]byte{
	'r', 'o', 'a', 'd', 'l', 'o', 'g', '.', 'l', 'o', 'c', 'k', 'm', 'a', 'p', 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Registry is a fixed-size array of cooperative locks. The zero value
// is not usable; call NewRegistry.
type Registry struct {
	shards [ShardCount]shard
}

type shard struct {
	mu   sync.Mutex
	held bool
	// wait is closed and replaced on every release, waking all
	// waiters at once. Waiters re-contend; there is no FIFO handoff.
	wait chan struct{}
}

// NewRegistry returns an empty lock registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].wait = make(chan struct{})
	}
	return r
}

// keyFor hashes a canonical name to its shard index.
func keyFor(name string) uint32 {
	hasher, err := blake3.NewKeyed(hashKey[:])
	if err != nil {
		panic("lockmap: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.WriteString(name)
	var digest [4]byte
	_, _ = hasher.Digest().Read(digest[:])
	key := uint32(digest[0]) | uint32(digest[1])<<8 | uint32(digest[2])<<16 | uint32(digest[3])<<24
	return key % ShardCount
}

// Acquire blocks the calling goroutine (cooperatively — the OS thread
// is free to run other goroutines) until no other goroutine holds
// name's shard, then marks it held. Returns ctx.Err() if the context
// is cancelled while waiting; on a nil error the caller owns the lock
// and must call Release with the same name.
func (r *Registry) Acquire(ctx context.Context, name string) error {
	s := &r.shards[keyFor(name)]
	for {
		s.mu.Lock()
		if !s.held {
			s.held = true
			s.mu.Unlock()
			return nil
		}
		wait := s.wait
		s.mu.Unlock()

		select {
		case <-wait:
			// Woken by a release. Loop and re-contend; another
			// waiter may have taken the shard first.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release clears the hold on name's shard and wakes all waiters.
// Releasing a shard that is not held panics: it means a caller's
// acquire/release pairing is broken, which would silently corrupt
// mutual exclusion if ignored.
func (r *Registry) Release(name string) {
	s := &r.shards[keyFor(name)]
	s.mu.Lock()
	if !s.held {
		s.mu.Unlock()
		panic("lockmap: release of lock not held: " + name)
	}
	s.held = false
	close(s.wait)
	s.wait = make(chan struct{})
	s.mu.Unlock()
}
