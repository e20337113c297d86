package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is a named dependency that can report liveness.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// Pulse reports the trading loop's heartbeat.
type Pulse interface {
	LastCycle() time.Time
	ErrorCount() int64
}

// HealthHandler reports process and dependency health.
type HealthHandler struct {
	pulse Pulse // optional
	deps  []Pinger
}

// NewHealthHandler creates a HealthHandler checking the given dependencies.
// pulse may be nil when no trading loop runs.
func NewHealthHandler(pulse Pulse, deps ...Pinger) *HealthHandler {
	return &HealthHandler{pulse: pulse, deps: deps}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Time      time.Time         `json:"time"`
	LastCycle *time.Time        `json:"last_cycle,omitempty"`
	Errors    int64             `json:"errors"`
	Deps      map[string]string `json:"deps,omitempty"`
}

// Check handles GET /healthz. It returns 503 when any dependency fails its
// ping so orchestrators can restart the process.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Time: time.Now().UTC()}
	status := http.StatusOK

	if h.pulse != nil {
		resp.Errors = h.pulse.ErrorCount()
		if t := h.pulse.LastCycle(); !t.IsZero() {
			resp.LastCycle = &t
		}
	}

	if len(h.deps) > 0 {
		resp.Deps = make(map[string]string, len(h.deps))
		for _, d := range h.deps {
			if err := d.Ping(ctx); err != nil {
				resp.Deps[d.Name()] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Deps[d.Name()] = "ok"
		}
	}

	writeJSON(w, status, resp)
}
