package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/attempt"
)

// AttemptStore is a Redis-aware registry of live attempts.
// Notes:
//   - Runners are goroutine-owned, so the registry itself stays in process.
//   - Redis carries a liveness marker per attempt (quiz:attempt:{id} -> quizID)
//     so operators can count running attempts across instances.
//   - The marker starts with ttl and is stretched to the attempt's time budget
//     plus ttl once the quiz is loaded, so it outlives long quizzes.
type AttemptStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	attempts map[string]*attempt.Runner
	untrack  map[string]func()
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{
		client:   client,
		ttl:      ttl,
		attempts: make(map[string]*attempt.Runner),
		untrack:  make(map[string]func()),
	}
}

func (s *AttemptStore) Add(r *attempt.Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[r.ID()] = r
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(r.ID()), r.Snapshot().QuizID, s.ttl).Err()

	snaps, cancel := r.Subscribe()
	s.untrack[r.ID()] = cancel
	go s.track(r.ID(), snaps, cancel)
}

// track extends the marker once the countdown is known, then lets go of the runner.
func (s *AttemptStore) track(attemptID string, snaps <-chan attempt.Snapshot, cancel func()) {
	defer cancel()
	for snap := range snaps {
		if snap.Phase != attempt.PhaseInProgress {
			continue
		}
		budget := time.Duration(snap.RemainingSeconds)*time.Second + s.ttl
		_ = s.client.Expire(context.Background(), s.key(attemptID), budget).Err()
		return
	}
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
	if _, ok := s.attempts[attemptID]; !ok {
		return
	}
	delete(s.attempts, attemptID)
	if cancel, ok := s.untrack[attemptID]; ok {
		cancel()
		delete(s.untrack, attemptID)
	}
	_ = s.client.Del(context.Background(), s.key(attemptID)).Err()
}

func (s *AttemptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

func (s *AttemptStore) key(attemptID string) string {
	return "quiz:attempt:" + attemptID
}
