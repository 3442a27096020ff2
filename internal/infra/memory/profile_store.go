package memory

import (
	"context"
	"sync"
	"time"

	"proctor-quiz-service/internal/domain"
)

// Profile is the in-memory row behind app.ProfileStore.
type Profile struct {
	UserID          string
	PaymentVerified bool
	HasAttempted    bool
	CompletedAt     time.Time
}

// ProfileStore keeps eligibility flags in memory.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

func NewProfileStore(profiles ...Profile) *ProfileStore {
	s := &ProfileStore{profiles: make(map[string]*Profile)}
	for i := range profiles {
		p := profiles[i]
		s.profiles[p.UserID] = &p
	}
	return s
}

func (s *ProfileStore) HasAttempted(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return false, domain.ErrProfileNotFound
	}
	return p.HasAttempted, nil
}

func (s *ProfileStore) IsPaymentVerified(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return false, domain.ErrProfileNotFound
	}
	return p.PaymentVerified, nil
}

func (s *ProfileStore) MarkAttempted(_ context.Context, userID string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.HasAttempted = true
	p.CompletedAt = completedAt
	return nil
}
