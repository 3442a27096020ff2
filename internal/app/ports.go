package app

import (
	"context"
	"time"

	"proctor-quiz-service/internal/domain"
)

// QuestionBank loads question content from a backing store, optionally
// filtered by category with a per-category quota.
type QuestionBank interface {
	FetchByCategory(ctx context.Context, category string, limit int) ([]domain.Question, error)
}

// AttemptStore persists scored attempt records. Save must return
// domain.ErrAttemptExists if a record already exists for the same user;
// that rejection is the authoritative one-attempt guard.
type AttemptStore interface {
	Save(ctx context.Context, record domain.AttemptRecord) error
}

// ProfileStore exposes the per-user eligibility flags. HasAttempted is the
// optimistic client-side gate; MarkAttempted sets the flag and completion
// timestamp after a successful submission.
type ProfileStore interface {
	HasAttempted(ctx context.Context, userID string) (bool, error)
	IsPaymentVerified(ctx context.Context, userID string) (bool, error)
	MarkAttempted(ctx context.Context, userID string, completedAt time.Time) error
}

// Window bounds quiz availability by two fixed instants. A zero instant
// leaves that side unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the availability window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}
