package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/quantfall/xrparb/internal/domain"
)

// TradeHandler serves the trade log.
type TradeHandler struct {
	store  domain.TradeStore
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler backed by the given store.
func NewTradeHandler(store domain.TradeStore, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{store: store, logger: logger}
}

type tradeDTO struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Pair           string    `json:"pair"`
	Size           float64   `json:"size"`
	Profit         float64   `json:"profit"`
	LatencySeconds float64   `json:"latency_seconds"`
}

// List handles GET /api/trades?limit=N&before=RFC3339.
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	before, err := queryBefore(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "before must be RFC 3339")
		return
	}

	recs, err := h.store.List(r.Context(), domain.ListOpts{Limit: queryLimit(r), Before: before})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	out := make([]tradeDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, tradeDTO{
			ID:             rec.ID,
			Timestamp:      rec.Timestamp,
			Pair:           rec.Pair.String(),
			Size:           rec.Size,
			Profit:         rec.Profit,
			LatencySeconds: rec.LatencySeconds,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": out})
}
