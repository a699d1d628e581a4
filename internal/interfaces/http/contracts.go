package http

import (
	"time"

	"github.com/lodestar-quant/lodestar/internal/backtest"
	"github.com/lodestar-quant/lodestar/internal/persistence"
)

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ComponentHealth reports one dependency's reachability.
type ComponentHealth struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
}

// RunsResponse is the body of GET /v1/runs.
type RunsResponse struct {
	Runs  []persistence.RunRecord `json:"runs"`
	Count int                     `json:"count"`
}

// TradesResponse is the body of GET /v1/runs/{id}/trades.
type TradesResponse struct {
	RunID  string                    `json:"run_id"`
	Trades []persistence.TradeRecord `json:"trades"`
	Count  int                       `json:"count"`
}

// EquityResponse is the body of GET /v1/runs/{id}/equity.
type EquityResponse struct {
	RunID  string                     `json:"run_id"`
	Points []persistence.EquityRecord `json:"points"`
	Count  int                        `json:"count"`
}

// BacktestRequest launches an asynchronous backtest via POST /v1/backtest.
// Dates use the YYYY-MM-DD layout. A nil baseline list runs every baseline;
// an empty one runs the core strategy alone.
type BacktestRequest struct {
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Baselines []string `json:"baselines"`
}

// BacktestAccepted acknowledges an accepted launch.
type BacktestAccepted struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Submitted time.Time `json:"submitted"`
}

// Stream message types pushed on /ws/progress.
const (
	StreamProgress  = "progress"
	StreamCompleted = "completed"
	StreamFailed    = "failed"
)

// StreamMessage wraps one websocket frame on /ws/progress.
type StreamMessage struct {
	Type      string             `json:"type"`
	RequestID string             `json:"request_id,omitempty"`
	Progress  *backtest.Progress `json:"progress,omitempty"`
	Detail    string             `json:"detail,omitempty"`
}
