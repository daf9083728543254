package automation

import (
	"sync"

	"github.com/screenwise/screenwise/types"
)

// Session is the mutable state tied to one capture-stream lifetime. The
// scheduling loop is its only writer; the mutex exists because the
// escalation unit of a tick runs on its own goroutine while the next ticks
// keep reading the busy flag.
type Session struct {
	mu sync.Mutex

	id string

	// lastObservedText is the local-comparison reference snapshot.
	lastObservedText string
	// lastAnalyzedFrame is the remote change-check reference.
	lastAnalyzedFrame *types.Frame
	// stabilityCounter counts consecutive raw candidate changes.
	stabilityCounter int
	// isRunning arms the scheduling loop.
	isRunning bool
	// isBusy marks a remote unit in flight; overlapping ticks are dropped.
	isBusy bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Running reports whether the scheduling loop is armed.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Busy reports whether a remote unit is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isBusy
}

// tryAcquire marks the session busy if it is idle and still running.
func (s *Session) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning || s.isBusy {
		return false
	}
	s.isBusy = true
	return true
}

// release clears the busy flag.
func (s *Session) release() {
	s.mu.Lock()
	s.isBusy = false
	s.mu.Unlock()
}

// stop disarms the loop and clears all reference state.
func (s *Session) stop() {
	s.mu.Lock()
	s.isRunning = false
	s.isBusy = false
	s.stabilityCounter = 0
	s.lastObservedText = ""
	s.lastAnalyzedFrame = nil
	s.mu.Unlock()
}

// observedText returns the local reference snapshot.
func (s *Session) observedText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastObservedText
}

// setObservedText replaces the local reference snapshot and resets the
// stability counter.
func (s *Session) setObservedText(text string) {
	s.mu.Lock()
	s.lastObservedText = text
	s.stabilityCounter = 0
	s.mu.Unlock()
}

// analyzedFrame returns the remote reference frame.
func (s *Session) analyzedFrame() *types.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAnalyzedFrame
}

// setAnalyzedFrame replaces the remote reference frame.
func (s *Session) setAnalyzedFrame(frame *types.Frame) {
	s.mu.Lock()
	s.lastAnalyzedFrame = frame
	s.mu.Unlock()
}

// bumpStability increments the counter and reports whether it reached the
// threshold; on reaching it the counter resets to zero.
func (s *Session) bumpStability(threshold int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stabilityCounter++
	if s.stabilityCounter >= threshold {
		s.stabilityCounter = 0
		return true
	}
	return false
}

// resetStability zeroes the counter (non-candidate tick).
func (s *Session) resetStability() {
	s.mu.Lock()
	s.stabilityCounter = 0
	s.mu.Unlock()
}
