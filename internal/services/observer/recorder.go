package observer

import (
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/dmquang/sensorex/internal/model"
)

// Recorder writes device state-change events (issued commands and
// acknowledgements) to InfluxDB and tracks the last write error for
// /healthz and /readyz. Readings themselves are never persisted.
type Recorder struct {
	api     api.WriteAPI
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

// NewRecorder wires the async write API and its error listener.
func NewRecorder(w api.WriteAPI) *Recorder {
	r := &Recorder{
		api:     w,
		lastErr: time.Now().Add(-24 * time.Hour), // default: far in the past
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				r.mu.Lock()
				r.lastErr = time.Now()
				r.mu.Unlock()
				log.Printf("influx write error: %v", err)
			}
		}
	}()
	return r
}

// RecordStateChange writes one point on measurement "device_event".
// eventType is "command.issued" or "command.acked".
func (r *Recorder) RecordStateChange(eventType string, cmd model.ControlCommand) {
	if r == nil {
		return
	}
	tags := map[string]string{
		"event_type":    eventType,
		"target":        cmd.Target,
		"originator_id": cmd.OriginatorID,
		"command":       cmd.Command,
	}
	fields := map[string]interface{}{
		"enabled": cmd.Enables(),
		"count":   int64(1),
	}
	r.api.WritePoint(influxdb2.NewPoint("device_event", tags, fields, cmd.IssuedAt))

	r.mu.Lock()
	r.counts[eventType]++
	r.mu.Unlock()
}

// LastErrorAge returns how long ago the last write error happened.
func (r *Recorder) LastErrorAge() time.Duration {
	if r == nil {
		return 99999 * time.Hour
	}
	r.mu.RLock()
	t := r.lastErr
	r.mu.RUnlock()
	return time.Since(t)
}

// Count reads the per-event-type ingest counter.
func (r *Recorder) Count(eventType string) int64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	c := r.counts[eventType]
	r.mu.RUnlock()
	return c
}
