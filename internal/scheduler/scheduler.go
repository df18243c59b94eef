// Package scheduler tracks deferred operations keyed by id so they can be
// cancelled before they fire and flushed deterministically in tests.
// The lifecycle engine uses it for simulated asynchronous message
// processing; nothing here is fire-and-forget.
package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type deferred struct {
	timer *time.Timer
	fn    func()
}

// Scheduler runs functions after a delay, keyed by id. At most one deferred
// operation exists per id; scheduling again replaces the previous one.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*deferred
	closed  bool
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{pending: make(map[string]*deferred)}
}

// Schedule runs fn after delay unless Cancel(id) or Close is called first.
// A previously scheduled operation with the same id is cancelled.
func (s *Scheduler) Schedule(id string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev, ok := s.pending[id]; ok {
		prev.timer.Stop()
	}
	d := &deferred{fn: fn}
	d.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		cur, ok := s.pending[id]
		if !ok || cur != d {
			// Cancelled or replaced between firing and locking.
			s.mu.Unlock()
			return
		}
		delete(s.pending, id)
		s.mu.Unlock()
		fn()
	})
	s.pending[id] = d
}

// Cancel stops the deferred operation for id. Reports whether one was
// pending.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.pending[id]
	if !ok {
		return false
	}
	d.timer.Stop()
	delete(s.pending, id)
	return true
}

// Fire runs the deferred operation for id immediately, synchronously, and
// removes it. Reports whether one was pending. Intended for tests that need
// to await simulated async completion without sleeping.
func (s *Scheduler) Fire(id string) bool {
	s.mu.Lock()
	d, ok := s.pending[id]
	if ok {
		d.timer.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	d.fn()
	return true
}

// Pending returns the number of deferred operations not yet fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels everything and rejects further scheduling.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, d := range s.pending {
		d.timer.Stop()
		delete(s.pending, id)
	}
	log.Debug().Msg("scheduler closed")
}
