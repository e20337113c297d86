package executor

import (
	"math"
	"time"
)

// Backoff computes exponential retry delays:
// delay = min(Max, Base * Exponent^attempt), with attempt counting from 0.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Exponent float64
}

// Delay returns the pause before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(float64(b.Base) * math.Pow(b.Exponent, float64(attempt)))
	if d > b.Max || d < 0 { // negative on float overflow
		return b.Max
	}
	return d
}
