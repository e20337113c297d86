package domain

import "time"

// ExecStatus is the execution coordinator's state machine position for one
// opportunity.
type ExecStatus string

const (
	ExecPending   ExecStatus = "pending"
	ExecPathFound ExecStatus = "path_found"
	ExecSubmitted ExecStatus = "submitted"
	ExecValidated ExecStatus = "validated"
	ExecFailed    ExecStatus = "failed"
	// ExecStuck marks a multi-leg execution where a later leg failed after an
	// earlier leg settled and the best-effort unwind did not fully recover.
	// Stuck executions imply residual exposure and require operator attention.
	ExecStuck ExecStatus = "stuck"
)

// Terminal reports whether the status is final; terminal records are
// append-only history and never mutated again.
func (s ExecStatus) Terminal() bool {
	switch s {
	case ExecValidated, ExecFailed, ExecStuck:
		return true
	}
	return false
}

// TxReceipt is the ledger's acknowledgement for one submitted payment.
type TxReceipt struct {
	Hash      string
	Leg       int // leg index within the opportunity, 0 for direct trades
	Validated bool
	Unwind    bool // true when the receipt belongs to a compensating payment
}

// ExecutionRecord tracks one attempt to realize an opportunity. It is created
// when execution begins and finalized exactly once on a terminal status.
type ExecutionRecord struct {
	ID             string
	OpportunityID  string
	Fingerprint    string
	Type           OpportunityType
	Pair           TradingPair
	Size           float64
	Attempts       int
	Status         ExecStatus
	Receipts       []TxReceipt
	RealizedProfit float64
	LastError      string
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// ExecStats is a running summary of executor activity, exposed through the
// observability API.
type ExecStats struct {
	Executed    int64
	Succeeded   int64
	Failed      int64
	Stuck       int64
	TotalProfit float64
}
