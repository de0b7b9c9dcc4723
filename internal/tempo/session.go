package tempo

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is how long a session waits after the last tap before
// finalizing on its own.
const DefaultQuietPeriod = 2000 * time.Millisecond

// FinalFunc receives the result of a session that finalized after going quiet.
type FinalFunc func(Estimate, error)

// TapSession wraps an Estimator with a quiet-period timer. Every tap re-arms
// the timer; when it fires the window is finalized, handed to the listener and
// cleared. The listener runs on the timer goroutine, never under the lock.
type TapSession struct {
	mu      sync.Mutex
	est     *Estimator
	quiet   time.Duration
	onFinal FinalFunc

	timer  *time.Timer
	gen    uint64
	closed bool
}

func NewTapSession(maxTaps int, quiet time.Duration, onFinal FinalFunc) *TapSession {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &TapSession{
		est:     NewEstimator(maxTaps),
		quiet:   quiet,
		onFinal: onFinal,
	}
}

// Tap records a tap at ts (ms, monotonic) and returns the advisory estimate.
func (s *TapSession) Tap(ts float64) (Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	est, err := s.est.Record(ts)
	if s.closed {
		return est, err
	}

	s.cancelLocked()
	gen := s.gen
	s.timer = time.AfterFunc(s.quiet, func() { s.fire(gen) })
	return est, err
}

// Finalize cancels the pending quiet-period task and finalizes immediately.
// The window is cleared whether or not an estimate could be made.
func (s *TapSession) Finalize() (Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	est, err := s.est.Finalize()
	s.est.Reset()
	return est, err
}

func (s *TapSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.est.Reset()
}

// Close stops the quiet-period task. Taps after Close are still recorded but
// never finalize on their own.
func (s *TapSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.closed = true
}

func (s *TapSession) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.est.Count()
}

func (s *TapSession) Samples() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.est.Samples()
}

// Pending reports whether a quiet-period finalize is armed.
func (s *TapSession) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// cancelLocked stops the timer and bumps the generation so that a callback
// already past Stop becomes a no-op.
func (s *TapSession) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *TapSession) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	est, err := s.est.Finalize()
	s.est.Reset()
	onFinal := s.onFinal
	s.mu.Unlock()

	if onFinal != nil {
		onFinal(est, err)
	}
}
