// Package risk gates detected opportunities against position, loss, and
// profit limits before anything reaches the executor.
package risk

import (
	"fmt"

	"github.com/quantfall/xrparb/internal/domain"
)

// Assessor scores opportunities against static limits and a position
// snapshot. It holds no mutable state: every assessment is a pure function
// of its inputs, which keeps concurrent assessments trivially safe.
type Assessor struct {
	limits domain.RiskLimits
}

// New creates an Assessor with the given limits.
func New(limits domain.RiskLimits) *Assessor {
	return &Assessor{limits: limits}
}

// Limits returns the static limits the assessor applies.
func (a *Assessor) Limits() domain.RiskLimits {
	return a.limits
}

// Assess checks the opportunity against the hard limits in order, then
// computes the weighted risk score. Hard-limit rejections short-circuit:
// the daily-loss circuit breaker is evaluated before this trade's own
// numbers so a breached day rejects everything.
//
// The score is monotone: larger size, thinner profit, and deeper daily
// loss each push it up, never down.
func (a *Assessor) Assess(opp domain.Opportunity, pos domain.PositionSnapshot) domain.RiskAssessment {
	out := domain.RiskAssessment{OpportunityID: opp.ID}

	// 1. Position limit: the pair's current exposure plus this trade.
	current := pos.SizeFor(opp.Pair)
	if current+opp.Size > a.limits.MaxPositionSize {
		out.Score = 1
		out.Reason = fmt.Sprintf("position limit: %.2f + %.2f exceeds %.2f",
			current, opp.Size, a.limits.MaxPositionSize)
		return out
	}

	// 2. Daily loss circuit breaker.
	if pos.DailyPnL < -a.limits.MaxDailyLoss {
		out.Score = 1
		out.Reason = "daily loss limit reached"
		return out
	}

	// 3. Profit floor per unit of size.
	if opp.Size <= 0 || opp.ExpectedProfit/opp.Size < a.limits.MinProfitThreshold {
		out.Score = 1
		out.Reason = "insufficient profit potential"
		return out
	}

	sizeRatio := opp.Size / a.limits.MaxPositionSize

	profitRisk := 1.0
	if opp.ProfitPct > 0 {
		profitRisk = a.limits.MinProfitThreshold / opp.ProfitPct
		if profitRisk > 1 {
			profitRisk = 1
		}
	}

	dailyRisk := 0.0
	if pos.DailyPnL < 0 {
		dailyRisk = -pos.DailyPnL / a.limits.MaxDailyLoss
		if dailyRisk > 1 {
			dailyRisk = 1
		}
	}

	out.Score = 0.4*sizeRatio + 0.3*profitRisk + 0.3*dailyRisk
	out.Approved = out.Score < a.limits.ApprovalThreshold
	if !out.Approved {
		out.Reason = fmt.Sprintf("risk score %.3f at or above threshold %.3f",
			out.Score, a.limits.ApprovalThreshold)
	}
	return out
}
