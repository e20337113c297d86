package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/quantfall/xrparb/internal/domain"
)

// OpportunityHandler serves recently detected opportunities.
type OpportunityHandler struct {
	store  domain.OpportunityStore
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler backed by the given store.
func NewOpportunityHandler(store domain.OpportunityStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{store: store, logger: logger}
}

type opportunityDTO struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Pair           string    `json:"pair,omitempty"`
	BuyVenue       string    `json:"buy_venue,omitempty"`
	SellVenue      string    `json:"sell_venue,omitempty"`
	Venue          string    `json:"venue,omitempty"`
	Cycle          []string  `json:"cycle,omitempty"`
	Size           float64   `json:"size"`
	ExpectedProfit float64   `json:"expected_profit"`
	ProfitPct      float64   `json:"profit_pct"`
	DetectedAt     time.Time `json:"detected_at"`
}

// ListRecent handles GET /api/opportunities?limit=N.
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opps, err := h.store.ListRecent(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	out := make([]opportunityDTO, 0, len(opps))
	for _, opp := range opps {
		dto := opportunityDTO{
			ID:             opp.ID,
			Type:           string(opp.Type),
			Size:           opp.Size,
			ExpectedProfit: opp.ExpectedProfit,
			ProfitPct:      opp.ProfitPct,
			DetectedAt:     opp.DetectedAt,
		}
		switch opp.Type {
		case domain.OpportunityDirect:
			dto.Pair = opp.Pair.String()
			dto.BuyVenue = opp.BuyVenue
			dto.SellVenue = opp.SellVenue
		case domain.OpportunityTriangular:
			dto.Venue = opp.Venue
			for _, leg := range opp.Cycle {
				dto.Cycle = append(dto.Cycle, leg.String())
			}
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": out})
}
