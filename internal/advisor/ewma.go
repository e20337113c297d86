// Package advisor provides an optional confidence hint for approved
// opportunities. The hint ranks candidates within a cycle; it never
// participates in approve/reject decisions.
package advisor

import (
	"context"
	"math"
	"sync"

	"github.com/quantfall/xrparb/internal/domain"
)

// alpha is the EWMA smoothing factor: recent observations dominate but a
// single outlier cannot flip the estimate.
const alpha = 0.3

// EWMA scores opportunities by how stable their profit margin has been for
// the same fingerprint. A margin near its running mean scores high; a
// margin far above it looks like a glitch quote and scores low.
type EWMA struct {
	mu    sync.Mutex
	mean  map[string]float64 // fingerprint -> smoothed profit pct
	seen  map[string]bool
}

// NewEWMA creates an empty advisor.
func NewEWMA() *EWMA {
	return &EWMA{
		mean: make(map[string]float64),
		seen: make(map[string]bool),
	}
}

// Advise returns a confidence in [0,1] for the opportunity and folds its
// profit margin into the running estimate.
func (e *EWMA) Advise(_ context.Context, opp domain.Opportunity) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fp := opp.Fingerprint()

	if !e.seen[fp] {
		e.seen[fp] = true
		e.mean[fp] = opp.ProfitPct
		// First sighting: neutral confidence.
		return 0.5, nil
	}

	mean := e.mean[fp]
	e.mean[fp] = alpha*opp.ProfitPct + (1-alpha)*mean

	// Relative deviation from the running mean, squashed into (0,1]:
	// zero deviation -> 1, each multiple of the mean halves confidence.
	if mean <= 0 {
		return 0.5, nil
	}
	dev := math.Abs(opp.ProfitPct-mean) / mean
	return 1 / (1 + dev), nil
}
