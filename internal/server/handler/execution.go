package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/quantfall/xrparb/internal/domain"
)

// StatsSource exposes the executor's running counters. It is nil when the
// process runs without an executor (monitor mode).
type StatsSource interface {
	Stats() domain.ExecStats
	InFlightCount() int
}

// ExecutionHandler serves execution history and executor statistics.
type ExecutionHandler struct {
	store  domain.ExecutionStore
	stats  StatsSource
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler. stats may be nil.
func NewExecutionHandler(store domain.ExecutionStore, stats StatsSource, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{store: store, stats: stats, logger: logger}
}

type txReceiptDTO struct {
	Hash      string `json:"hash"`
	Leg       int    `json:"leg"`
	Validated bool   `json:"validated"`
	Unwind    bool   `json:"unwind,omitempty"`
}

type executionDTO struct {
	ID             string         `json:"id"`
	OpportunityID  string         `json:"opportunity_id"`
	Fingerprint    string         `json:"fingerprint"`
	Type           string         `json:"type"`
	Pair           string         `json:"pair"`
	Size           float64        `json:"size"`
	Attempts       int            `json:"attempts"`
	Status         string         `json:"status"`
	Receipts       []txReceiptDTO `json:"receipts,omitempty"`
	RealizedProfit float64        `json:"realized_profit"`
	LastError      string         `json:"last_error,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

func toExecutionDTO(rec domain.ExecutionRecord) executionDTO {
	dto := executionDTO{
		ID:             rec.ID,
		OpportunityID:  rec.OpportunityID,
		Fingerprint:    rec.Fingerprint,
		Type:           string(rec.Type),
		Pair:           rec.Pair.String(),
		Size:           rec.Size,
		Attempts:       rec.Attempts,
		Status:         string(rec.Status),
		RealizedProfit: rec.RealizedProfit,
		LastError:      rec.LastError,
		StartedAt:      rec.StartedAt,
		CompletedAt:    rec.CompletedAt,
	}
	for _, rcpt := range rec.Receipts {
		dto.Receipts = append(dto.Receipts, txReceiptDTO{
			Hash:      rcpt.Hash,
			Leg:       rcpt.Leg,
			Validated: rcpt.Validated,
			Unwind:    rcpt.Unwind,
		})
	}
	return dto
}

// ListRecent handles GET /api/executions?limit=N.
func (h *ExecutionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.ListRecent(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list executions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	out := make([]executionDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toExecutionDTO(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": out})
}

type statsResponse struct {
	Executed    int64   `json:"executed"`
	Succeeded   int64   `json:"succeeded"`
	Failed      int64   `json:"failed"`
	Stuck       int64   `json:"stuck"`
	TotalProfit float64 `json:"total_profit"`
	InFlight    int     `json:"in_flight"`
}

// Stats handles GET /api/executions/stats. Without an executor it reports
// zeros rather than 404 so dashboards can poll unconditionally.
func (h *ExecutionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	if h.stats != nil {
		s := h.stats.Stats()
		resp = statsResponse{
			Executed:    s.Executed,
			Succeeded:   s.Succeeded,
			Failed:      s.Failed,
			Stuck:       s.Stuck,
			TotalProfit: s.TotalProfit,
			InFlight:    h.stats.InFlightCount(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
