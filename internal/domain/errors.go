package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrNoPath           = errors.New("no payment path exists")
	ErrUnknownVenue     = errors.New("unknown venue")
	ErrMalformedQuote   = errors.New("malformed quote")
	ErrStaleOpportunity = errors.New("opportunity past staleness window")
	ErrInFlight         = errors.New("execution already in flight for fingerprint")
	ErrInsufficientFunds = errors.New("insufficient account balance")
)

// StructuralError wraps a failure that no retry can fix: missing paths,
// unknown venues, malformed data. The executor fails fast on these.
type StructuralError struct {
	Err error
}

func (e *StructuralError) Error() string { return "structural: " + e.Err.Error() }
func (e *StructuralError) Unwrap() error { return e.Err }

// TransientError wraps a failure worth retrying: timeouts, temporary ledger
// unavailability, dropped connections.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Structural marks err as structural. Returns nil for a nil err.
func Structural(err error) error {
	if err == nil {
		return nil
	}
	return &StructuralError{Err: err}
}

// Transient marks err as transient. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsStructural reports whether err is classified structural.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// IsTransient reports whether err is classified transient. Unclassified
// errors are treated as transient by callers that must choose, but this
// reports only explicit classification.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
