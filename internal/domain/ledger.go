package domain

import (
	"context"
	"time"
)

// BookOffer is one resting offer from the ledger's order book: the rate the
// taker pays (quote per base) and the size available at it.
type BookOffer struct {
	Rate float64
	Size float64
}

// PathAlternative is one discovered payment route between a source and
// destination, as returned by the ledger's path-finding engine. Path is the
// opaque path element set handed back verbatim on submission.
type PathAlternative struct {
	SourceAmount float64
	Path         []byte // raw path set JSON, passed through to the payment
}

// PaymentRequest describes one payment the executor wants submitted: deliver
// Amount of Currency (issued by Issuer when not native) to Destination,
// spending at most SendMax of the source currency along Paths.
type PaymentRequest struct {
	Destination    string
	Currency       string
	Issuer         string
	Amount         float64
	SendMaxCurrency string
	SendMaxIssuer   string
	SendMax        float64
	Paths          []byte
}

// SubmitResult is the immediate engine response to a payment submission.
// Validated is false until the transaction appears in a validated ledger;
// the executor confirms asynchronously via the transaction stream.
type SubmitResult struct {
	Hash      string
	Validated bool
}

// AccountState is the pre-flight view of the trading account.
type AccountState struct {
	Balance  float64 // native currency balance
	Sequence uint32
}

// LedgerGateway is the collaborator boundary to the decentralized-exchange
// ledger. Implementations own connection management, signing, and wire
// formats; everything above this interface reasons in domain types only.
type LedgerGateway interface {
	// GetOrderBook returns the best offers selling base for quote at the
	// given issuer, best rate first.
	GetOrderBook(ctx context.Context, base, quote, issuer string) ([]BookOffer, error)

	// FindPaths discovers payment routes delivering destAmount of the given
	// currency to destination. An empty result is a structural condition,
	// not an error.
	FindPaths(ctx context.Context, destination, currency, issuer string, destAmount float64) ([]PathAlternative, error)

	// SubmitPayment signs and submits a payment, returning the transaction
	// hash and whether the engine already saw it validated.
	SubmitPayment(ctx context.Context, req PaymentRequest) (SubmitResult, error)

	// AwaitValidation blocks until the transaction with the given hash is
	// included in a validated ledger, or the timeout elapses.
	AwaitValidation(ctx context.Context, hash string, timeout time.Duration) (bool, error)

	// GetAccountInfo returns the trading account's balance and sequence.
	GetAccountInfo(ctx context.Context, address string) (AccountState, error)
}
