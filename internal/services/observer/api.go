package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/sony/gobreaker"

	"github.com/dmquang/sensorex/internal/model"
	"github.com/dmquang/sensorex/pkg/mqttbus"
)

// StateEvent is the recorded-event DTO served to dashboards.
type StateEvent struct {
	Target     string `json:"target"`
	Command    string `json:"command"`
	EventType  string `json:"event_type"`
	Enabled    bool   `json:"enabled"`
	Originator string `json:"originator_id"`
	Time       string `json:"time"` // RFC3339
}

// API is the presentation surface consumed by dashboards: snapshot reads,
// command issuing and the recorded-event feed. Influx reads go through a
// circuit breaker with a last-good fallback so a slow or dead store never
// stalls the dashboard.
type API struct {
	obs        *Observer
	influx     influxdb2.Client // optional
	org        string
	bucket     string
	eventsCB   *gobreaker.CircuitBreaker
	staleAfter time.Duration

	mu       sync.Mutex
	lastGood []StateEvent
}

func mkCB(name string, fails, openMs, intervalMs int) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: time.Duration(intervalMs) * time.Millisecond,
		Timeout:  time.Duration(openMs) * time.Millisecond,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
	})
}

func NewAPI(obs *Observer, influx influxdb2.Client, org, bucket string, staleAfter time.Duration) *API {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	return &API{
		obs:        obs,
		influx:     influx,
		org:        org,
		bucket:     bucket,
		eventsCB:   mkCB("events", 3, 10000, 60000),
		staleAfter: staleAfter,
	}
}

// Register mounts the API routes.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/devices", a.handleDevices)
	mux.HandleFunc("/control", a.handleControl)
	mux.HandleFunc("/events/latest", a.handleEventsLatest)
}

type deviceDTO struct {
	DeviceID      string         `json:"device_id"`
	Enabled       bool           `json:"enabled"`
	LastReading   *model.Reading `json:"last_reading,omitempty"`
	LastControlAt string         `json:"last_control_at,omitempty"`
	Stale         bool           `json:"stale"`
	Evaluation    *Evaluation    `json:"evaluation,omitempty"`
}

func (a *API) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	snap := a.obs.Snapshot()

	out := make([]deviceDTO, 0, len(snap))
	for _, d := range snap {
		dto := deviceDTO{
			DeviceID:    d.DeviceID,
			Enabled:     d.Enabled,
			LastReading: d.LastReading,
		}
		if !d.LastControlAt.IsZero() {
			dto.LastControlAt = d.LastControlAt.Format(time.RFC3339)
		}
		if age, ok := d.StaleSince(now); ok {
			dto.Stale = age > a.staleAfter
			ev := EvaluateReading(*d.LastReading)
			dto.Evaluation = &ev
		} else {
			dto.Stale = true // never reported
		}
		out = append(out, dto)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (a *API) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Command string `json:"command"`
		Target  string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Target == "" {
		req.Target = model.TargetAll
	}

	if err := a.obs.IssueCommand(req.Command, req.Target); err != nil {
		if errors.Is(err, mqttbus.ErrNotConnected) {
			http.Error(w, "bus unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "sent",
		"command": req.Command,
		"target":  req.Target,
	})
}

func buildFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == "device_event")
  |> filter(fn: (r) => r._field == "enabled")
  |> keep(columns: ["_time","_value","target","originator_id","event_type","command"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, limit)
}

// handleEventsLatest serves the recorded state-change feed. When Influx is
// unreachable (or the breaker is open) the last good result is served with
// an X-Fallback header instead of an error.
func (a *API) handleEventsLatest(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20, 1, 500)
	minutes := queryInt(r, "minutes", 1440, 1, 7*24*60)

	w.Header().Set("Content-Type", "application/json")

	if a.influx == nil {
		_ = json.NewEncoder(w).Encode(a.lastGoodCopy())
		return
	}

	res, err := a.eventsCB.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		return a.queryEvents(ctx, minutes, limit)
	})
	if err != nil {
		w.Header().Set("X-Fallback", "last-good")
		_ = json.NewEncoder(w).Encode(a.lastGoodCopy())
		return
	}

	events := res.([]StateEvent)
	a.mu.Lock()
	a.lastGood = events
	a.mu.Unlock()
	_ = json.NewEncoder(w).Encode(events)
}

func (a *API) queryEvents(ctx context.Context, minutes, limit int) ([]StateEvent, error) {
	qapi := a.influx.QueryAPI(a.org)
	res, err := qapi.Query(ctx, buildFlux(a.bucket, minutes, limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Close() }()

	out := make([]StateEvent, 0, limit)
	for res.Next() {
		rec := res.Record()
		ev := StateEvent{Time: rec.Time().UTC().Format(time.RFC3339)}
		if v, ok := rec.Value().(bool); ok {
			ev.Enabled = v
		}
		ev.Target = stringByKey(rec.ValueByKey("target"))
		ev.Originator = stringByKey(rec.ValueByKey("originator_id"))
		ev.EventType = stringByKey(rec.ValueByKey("event_type"))
		ev.Command = stringByKey(rec.ValueByKey("command"))
		out = append(out, ev)
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	return out, nil
}

func (a *API) lastGoodCopy() []StateEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastGood == nil {
		return []StateEvent{}
	}
	return append([]StateEvent(nil), a.lastGood...)
}

func stringByKey(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if n < min {
				return min
			}
			if max > 0 && n > max {
				return max
			}
			return n
		}
	}
	return def
}
