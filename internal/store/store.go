// Package store holds the converged per-process view of which devices exist
// and whether each is currently enabled. One store instance is the only
// shared mutable resource inside a process; a single RWMutex serializes the
// inbound delivery path against command-issuing and tick paths.
package store

import (
	"sync"
	"time"

	"github.com/dmquang/sensorex/internal/model/messages"
)

// DeviceState is one converged entry. Entries are created on first Reading or
// first control acknowledgement referencing an unseen device id and are never
// removed for the lifetime of the process; devices that stop publishing stay
// visible with a stale LastReading.
type DeviceState struct {
	DeviceID      string            `json:"device_id"`
	Enabled       bool              `json:"enabled"`
	LastReading   *messages.Reading `json:"last_reading,omitempty"`
	LastControlAt time.Time         `json:"last_control_at,omitempty"`
}

// StaleSince reports how long ago the last reading arrived. Staleness is
// derived, not stored. ok is false when no reading has been seen yet.
func (d DeviceState) StaleSince(now time.Time) (age time.Duration, ok bool) {
	if d.LastReading == nil {
		return 0, false
	}
	return now.Sub(d.LastReading.Timestamp), true
}

// Store is the Device State Store.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*DeviceState
}

func New() *Store {
	return &Store{devices: make(map[string]*DeviceState)}
}

// UpsertReading creates or replaces the entry's last reading. An unseen
// device id creates the entry with enabled=true (the protocol default).
func (s *Store) UpsertReading(r messages.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[r.DeviceID]
	if !ok {
		d = &DeviceState{DeviceID: r.DeviceID, Enabled: true}
		s.devices[r.DeviceID] = d
	}
	rc := r
	d.LastReading = &rc
}

// SetEnabled applies a control outcome. target "all" expands against known —
// the caller's view of the known-id set at time of application — and never
// against devices discovered later. A specific unseen target creates an
// enabled-only entry (no reading yet). Setting is idempotent: it sets, it
// does not toggle.
func (s *Store) SetEnabled(target string, enabled bool, known []string) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if target == messages.TargetAll {
		for _, id := range known {
			s.setLocked(id, enabled, now)
		}
		return
	}
	s.setLocked(target, enabled, now)
}

func (s *Store) setLocked(id string, enabled bool, at time.Time) {
	d, ok := s.devices[id]
	if !ok {
		d = &DeviceState{DeviceID: id}
		s.devices[id] = d
	}
	d.Enabled = enabled
	d.LastControlAt = at
}

// Snapshot returns a consistent copy of the full mapping for presentation
// use. The copy shares nothing mutable with the store.
func (s *Store) Snapshot() map[string]DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]DeviceState, len(s.devices))
	for id, d := range s.devices {
		cp := *d
		if d.LastReading != nil {
			r := *d.LastReading
			cp.LastReading = &r
		}
		out[id] = cp
	}
	return out
}

// Keys returns the currently-known device ids.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.devices))
	for id := range s.devices {
		out = append(out, id)
	}
	return out
}

// Get returns a copy of one entry.
func (s *Store) Get(id string) (DeviceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return DeviceState{}, false
	}
	cp := *d
	if d.LastReading != nil {
		r := *d.LastReading
		cp.LastReading = &r
	}
	return cp, true
}
