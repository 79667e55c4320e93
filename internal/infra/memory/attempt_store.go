package memory

import (
	"sync"

	"quiz-attempt-service/internal/attempt"
)

// AttemptStore is an in-memory registry of live attempt runners.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]*attempt.Runner
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]*attempt.Runner),
	}
}

func (s *AttemptStore) Add(r *attempt.Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[r.ID()] = r
}

func (s *AttemptStore) Get(attemptID string) (*attempt.Runner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.attempts[attemptID]
	return r, ok
}

func (s *AttemptStore) Remove(attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, attemptID)
}

func (s *AttemptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}
