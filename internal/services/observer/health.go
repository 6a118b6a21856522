package observer

import (
	"encoding/json"
	"net/http"
	"time"
)

// ConnState is the slice of the bus adapter the health probes need.
type ConnState interface {
	IsConnected() bool
}

type healthHandler struct {
	bus      ConnState
	recorder *Recorder
}

func NewHealthHandler(bus ConnState, r *Recorder) http.Handler {
	return &healthHandler{bus: bus, recorder: r}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		BusConnected    bool    `json:"bus_connected"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	}
	st := status{
		BusConnected:    h.bus != nil && h.bus.IsConnected(),
		LastWriteErrorS: h.recorder.LastErrorAge().Seconds(),
	}

	switch {
	case st.BusConnected && h.recorder.LastErrorAge() > 30*time.Second:
		st.Status = "ok"
	case st.BusConnected:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// readyHandler: 200 only when the bus is up and writes are not erroring.
type readyHandler struct {
	bus      ConnState
	recorder *Recorder
	minError time.Duration
}

func NewReadyHandler(bus ConnState, r *Recorder, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{bus: bus, recorder: r, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.bus != nil && h.bus.IsConnected() && h.recorder.LastErrorAge() > h.minError
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	w.Header().Set("Content-Type", "application/json")
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
