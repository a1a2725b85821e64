package usecase

import (
	"sync/atomic"
	"time"

	"OptArb/internal/domain/models"
)

// LiveState is the shared handle over an instrument's mutable state.
// Readers always see a complete record; writers replace the whole record.
type LiveState struct {
	p atomic.Pointer[models.LiveState]
}

func NewLiveState() *LiveState {
	s := &LiveState{}
	s.p.Store(&models.LiveState{})
	return s
}

// Load returns a copy of the current state.
func (s *LiveState) Load() models.LiveState {
	return *s.p.Load()
}

// Update applies fn to a copy of the current state and swaps it in.
// fn may run more than once under contention and must not have side effects.
func (s *LiveState) Update(fn func(st *models.LiveState)) models.LiveState {
	for {
		old := s.p.Load()
		next := *old
		fn(&next)
		next.UpdatedAt = time.Now()
		if s.p.CompareAndSwap(old, &next) {
			return next
		}
	}
}
