package handler

import (
	"net/http"
	"time"

	"github.com/quantfall/xrparb/internal/domain"
)

// SnapshotSource hands out consistent copies of the position ledger.
type SnapshotSource interface {
	Snapshot() domain.PositionSnapshot
}

// PositionHandler serves the current position ledger state.
type PositionHandler struct {
	positions SnapshotSource
}

// NewPositionHandler creates a PositionHandler reading from the given source.
func NewPositionHandler(positions SnapshotSource) *PositionHandler {
	return &PositionHandler{positions: positions}
}

type pairPositionDTO struct {
	Pair        string  `json:"pair"`
	NetSize     float64 `json:"net_size"`
	RealizedPnL float64 `json:"realized_pnl"`
	TradeCount  int     `json:"trade_count"`
}

type positionsResponse struct {
	Positions   []pairPositionDTO `json:"positions"`
	DailyPnL    float64           `json:"daily_pnl"`
	TradeCount  int               `json:"trade_count"`
	WinRate     float64           `json:"win_rate"`
	MaxDrawdown float64           `json:"max_drawdown"`
	DayStart    time.Time         `json:"day_start"`
}

// Snapshot handles GET /api/positions.
func (h *PositionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.positions.Snapshot()

	resp := positionsResponse{
		Positions:   make([]pairPositionDTO, 0, len(snap.Positions)),
		DailyPnL:    snap.DailyPnL,
		TradeCount:  snap.TradeCount,
		WinRate:     snap.WinRate(),
		MaxDrawdown: snap.MaxDrawdown,
		DayStart:    snap.DayStart,
	}
	for pair, pos := range snap.Positions {
		resp.Positions = append(resp.Positions, pairPositionDTO{
			Pair:        pair.String(),
			NetSize:     pos.NetSize,
			RealizedPnL: pos.RealizedPnL,
			TradeCount:  pos.TradeCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
