package memory

import (
	"context"
	"sync"

	"proctor-quiz-service/internal/domain"
)

// AttemptStore is the in-memory implementation of app.AttemptStore. It
// enforces the one-attempt-per-user guard the same way the SQL store's
// unique constraint does.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.AttemptRecord
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]domain.AttemptRecord)}
}

func (s *AttemptStore) Save(_ context.Context, record domain.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[record.UserID]; ok {
		return domain.ErrAttemptExists
	}
	s.attempts[record.UserID] = record
	return nil
}

// Get returns the persisted attempt for a user, if any.
func (s *AttemptStore) Get(_ context.Context, userID string) (domain.AttemptRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.attempts[userID]
	return record, ok
}
