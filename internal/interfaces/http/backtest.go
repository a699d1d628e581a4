package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/backtest"
	"github.com/lodestar-quant/lodestar/internal/strategy"
)

// Runner executes a backtest comparison. strategy.Orchestrator satisfies it.
type Runner interface {
	RunBacktest(ctx context.Context, start, end time.Time,
		baselines []string, progress backtest.ProgressFn) (*strategy.Comparison, error)
}

const dateLayout = "2006-01-02"

// launchBacktest handles POST /v1/backtest. The run happens on its own
// goroutine and outlives the request; progress and the final verdict stream
// on /ws/progress tagged with the returned request id.
func (h *handlers) launchBacktest(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "runner_disabled",
			"No backtest runner is configured")
		return
	}

	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_start",
			"start must use YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_end",
			"end must use YYYY-MM-DD")
		return
	}
	if start.After(end) {
		h.writeError(w, r, http.StatusBadRequest, "invalid_range",
			"start is after end")
		return
	}

	requestID := uuid.New().String()[:8]
	go h.runDetached(requestID, start, end, req.Baselines)

	h.writeJSON(w, http.StatusAccepted, BacktestAccepted{
		Status:    "accepted",
		RequestID: requestID,
		Submitted: time.Now().UTC(),
	})
}

// runDetached drives the comparison off the request lifecycle, forwarding
// every progress event to the websocket hub.
func (h *handlers) runDetached(requestID string, start, end time.Time, baselines []string) {
	log.Info().
		Str("request_id", requestID).
		Time("start", start).
		Time("end", end).
		Msg("Backtest launch accepted")

	progress := func(ev backtest.Progress) {
		h.hub.Broadcast(StreamMessage{
			Type:      StreamProgress,
			RequestID: requestID,
			Progress:  &ev,
		})
	}

	comparison, err := h.runner.RunBacktest(context.Background(), start, end, baselines, progress)
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Msg("Backtest launch failed")
		h.hub.Broadcast(StreamMessage{
			Type:      StreamFailed,
			RequestID: requestID,
			Detail:    err.Error(),
		})
		return
	}

	h.hub.Broadcast(StreamMessage{
		Type:      StreamCompleted,
		RequestID: requestID,
		Detail:    comparison.Summary(),
	})
}
