// Package traffic keeps sliding windows of request outcomes. The health
// endpoint reads them to decide whether the service is degraded.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies one finished request.
type Outcome int

const (
	// Success is a request served without an upstream failure.
	Success Outcome = iota
	// Failure is a request that ended in an upstream error or timeout.
	Failure
	// Denied is a request rejected by the rate limiter.
	Denied
)

// maxAge bounds how far back any window may look.
const maxAge = 5 * time.Minute

// Window summarizes the outcomes recorded within a window.
type Window struct {
	Successes int
	Failures  int
	Denied    int
}

// Requests returns all outcomes in the window, denials included.
func (w Window) Requests() int {
	return w.Successes + w.Failures + w.Denied
}

// ErrorPct returns failures as a percentage of served requests. Denials are
// excluded; an empty window is 0.
func (w Window) ErrorPct() int {
	served := w.Successes + w.Failures
	if served == 0 {
		return 0
	}
	return w.Failures * 100 / served
}

// Tracker maintains sliding windows of outcome timestamps.
// The zero value is ready to use.
type Tracker struct {
	mu    sync.Mutex
	times [3][]time.Time

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Record records one outcome at the current time.
func (t *Tracker) Record(o Outcome) {
	t.RecordN(o, 1)
}

// RecordN records n outcomes of the same kind at the current time.
func (t *Tracker) RecordN(o Outcome, n int) {
	if o < Success || o > Denied || n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for i := 0; i < n; i++ {
		t.times[o] = append(t.times[o], now)
	}
	t.pruneLocked(now)
}

// Window returns the outcome counts within the last d.
func (t *Tracker) Window(d time.Duration) Window {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-d)
	return Window{
		Successes: countSince(t.times[Success], cutoff),
		Failures:  countSince(t.times[Failure], cutoff),
		Denied:    countSince(t.times[Denied], cutoff),
	}
}

// Degraded reports whether the error percentage within d reached pct.
func (t *Tracker) Degraded(d time.Duration, pct int) bool {
	w := t.Window(d)
	return w.Successes+w.Failures > 0 && w.ErrorPct() >= pct
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = [3][]time.Time{}
}

// countSince counts timestamps that are not before cutoff. Slices are
// appended in clock order, so the scan starts from the end.
func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(times) - 1; i >= 0 && !times[i].Before(cutoff); i-- {
		n++
	}
	return n
}

// pruneLocked drops timestamps older than maxAge. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	for k := range t.times {
		times := t.times[k]
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[k] = append(times[:0], times[i:]...)
		}
	}
}
