package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/lodestar-quant/lodestar/internal/persistence"
)

const maxRunsPageSize = 200

func (h *handlers) requireRepo(w http.ResponseWriter, r *http.Request) bool {
	if h.repo == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "persistence_disabled",
			"Run storage is not configured")
		return false
	}
	return true
}

// listRuns handles GET /v1/runs?limit=n, newest first.
func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w, r) {
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= maxRunsPageSize {
			limit = parsed
		}
	}

	runs, err := h.repo.Runs.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

// getRun handles GET /v1/runs/{id}.
func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w, r) {
		return
	}

	id := mux.Vars(r)["id"]
	run, err := h.repo.Runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "run_not_found", "No run with id "+id)
			return
		}
		h.writeError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// listTrades handles GET /v1/runs/{id}/trades.
func (h *handlers) listTrades(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w, r) {
		return
	}

	id := mux.Vars(r)["id"]
	trades, err := h.repo.Trades.ListByRun(r.Context(), id)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, TradesResponse{RunID: id, Trades: trades, Count: len(trades)})
}

// listEquity handles GET /v1/runs/{id}/equity.
func (h *handlers) listEquity(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w, r) {
		return
	}

	id := mux.Vars(r)["id"]
	points, err := h.repo.Equity.ListByRun(r.Context(), id)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, EquityResponse{RunID: id, Points: points, Count: len(points)})
}
