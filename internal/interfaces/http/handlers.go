package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lodestar-quant/lodestar/internal/metrics"
	"github.com/lodestar-quant/lodestar/internal/persistence"
)

// handlers binds every endpoint to its collaborators.
type handlers struct {
	repo    *persistence.Repository
	metrics *metrics.Metrics
	runner  Runner
	checks  map[string]HealthCheck
	hub     *Hub
	started time.Time
}

func newHandlers(opts Options, hub *Hub) *handlers {
	return &handlers{
		repo:    opts.Repo,
		metrics: opts.Metrics,
		runner:  opts.Runner,
		checks:  opts.Checks,
		hub:     hub,
		started: time.Now(),
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestIDFrom(r),
		Timestamp: time.Now().UTC(),
	})
}

func (h *handlers) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// health probes every registered dependency within the request deadline.
// Any failing probe degrades the overall status but still answers 200; the
// monitor stays reachable while its dependencies are not.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := make(map[string]ComponentHealth, len(h.checks))
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			status = "degraded"
			components[name] = ComponentHealth{Status: "unreachable", Detail: err.Error()}
			continue
		}
		components[name] = ComponentHealth{Status: "ok"}
	}

	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Components: components,
	})
}

func (h *handlers) metricsHandler() http.Handler {
	if h.metrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.writeError(w, r, http.StatusServiceUnavailable, "metrics_disabled",
				"Metrics collection is not configured")
		})
	}
	return h.metrics.Handler()
}
