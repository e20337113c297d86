package domain

import (
	"context"
	"time"
)

// TradeRecord is the observability log entry for one completed trade.
type TradeRecord struct {
	ID             int64
	Timestamp      time.Time
	Pair           TradingPair
	Size           float64
	Profit         float64
	LatencySeconds float64
}

// ErrorRecord is the observability log entry for one component failure.
type ErrorRecord struct {
	ID        int64
	Timestamp time.Time
	Component string
	Message   string
	Severity  string // "warning", "error", "critical"
}

// ListOpts narrows store list queries.
type ListOpts struct {
	Limit  int
	Before *time.Time
}

// ExecutionStore persists execution records. Create is called when execution
// begins; Finalize exactly once when the record reaches a terminal status.
type ExecutionStore interface {
	Create(ctx context.Context, rec ExecutionRecord) error
	Finalize(ctx context.Context, rec ExecutionRecord) error
	ListRecent(ctx context.Context, limit int) ([]ExecutionRecord, error)
	ListFinalizedBefore(ctx context.Context, cutoff time.Time, limit int) ([]ExecutionRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TradeStore persists the trade log consumed by dashboards.
type TradeStore interface {
	Insert(ctx context.Context, rec TradeRecord) error
	List(ctx context.Context, opts ListOpts) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OpportunityStore persists detected opportunities for observability only;
// correctness never depends on it.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
}

// AuditStore persists error records.
type AuditStore interface {
	Log(ctx context.Context, rec ErrorRecord) error
	CountSince(ctx context.Context, since time.Time) (int, error)
}
