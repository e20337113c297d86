package executor

import "sync"

// InFlight enforces at-most-one live execution per opportunity fingerprint.
// A second detection of the same opportunity while one executes is dropped,
// not queued: queuing would double-spend the liquidity snapshot the first
// execution is already consuming. It is safe for concurrent use.
type InFlight struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewInFlight creates an empty guard.
func NewInFlight() *InFlight {
	return &InFlight{active: make(map[string]struct{})}
}

// Acquire claims the fingerprint. It returns false when an execution for it
// is already live; the caller must then skip, not wait.
func (f *InFlight) Acquire(fingerprint string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, live := f.active[fingerprint]; live {
		return false
	}
	f.active[fingerprint] = struct{}{}
	return true
}

// Release frees the fingerprint. Must be called exactly once per successful
// Acquire, on every exit path.
func (f *InFlight) Release(fingerprint string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, fingerprint)
}

// Len returns the number of live executions.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}
