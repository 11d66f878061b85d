package collector

import "sync/atomic"

// StopSignal is a cooperative cancellation flag shared between the caller
// and a running Driver. The driver polls it once per iteration.
type StopSignal struct {
	requested atomic.Bool
}

// Request asks the running loop to stop at its next iteration boundary.
func (s *StopSignal) Request() {
	s.requested.Store(true)
}

// Requested reports whether a stop is pending.
func (s *StopSignal) Requested() bool {
	return s.requested.Load()
}

// Reset clears a pending stop.
func (s *StopSignal) Reset() {
	s.requested.Store(false)
}

// consume reports and clears a pending stop in one step.
func (s *StopSignal) consume() bool {
	return s.requested.CompareAndSwap(true, false)
}
