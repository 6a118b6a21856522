// Package dedup filters duplicate deliveries by payload identity. QoS 1
// redeliveries carry the same payload, so a TTL'd set of payload hashes is
// enough to drop them.
package dedup

import (
	"sync"
	"time"
)

type Deduper struct {
	mu        sync.Mutex
	ttl       time.Duration
	max       int
	seen      map[string]time.Time
	dups      uint64
	nextSweep time.Time
}

// New builds a deduper with the given entry TTL and size cap.
func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{
		ttl:       ttl,
		max:       max,
		seen:      make(map[string]time.Time, max),
		nextSweep: time.Now().Add(ttl),
	}
}

// ShouldProcess reports whether id is new (or expired) and marks it seen.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		d.dups++
		return false
	}
	d.seen[id] = now.Add(d.ttl)

	// expired entries pile up between duplicates of anything; sweep them out
	// once per TTL window, or immediately when over the cap
	if now.After(d.nextSweep) || len(d.seen) > d.max {
		d.sweepLocked(now)
	}
	return true
}

func (d *Deduper) sweepLocked(now time.Time) {
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
	d.nextSweep = now.Add(d.ttl)
}

// Duplicates counts deliveries rejected as already seen.
func (d *Deduper) Duplicates() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dups
}

// Len reports the live tracking-set size (expired entries included until the
// next sweep).
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
