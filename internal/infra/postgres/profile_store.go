package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"proctor-quiz-service/internal/domain"
)

// ProfileStore reads and updates per-user eligibility flags.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) HasAttempted(ctx context.Context, userID string) (bool, error) {
	var attempted bool
	err := s.pool.QueryRow(ctx,
		`SELECT has_attempted_quiz FROM profiles WHERE user_id = $1`, userID).
		Scan(&attempted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, domain.ErrProfileNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	return attempted, nil
}

func (s *ProfileStore) IsPaymentVerified(ctx context.Context, userID string) (bool, error) {
	var verified bool
	err := s.pool.QueryRow(ctx,
		`SELECT payment_verified FROM profiles WHERE user_id = $1`, userID).
		Scan(&verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, domain.ErrProfileNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	return verified, nil
}

func (s *ProfileStore) MarkAttempted(ctx context.Context, userID string, completedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE profiles
		SET has_attempted_quiz = TRUE, quiz_completed_at = $2
		WHERE user_id = $1`, userID, completedAt)
	if err != nil {
		return fmt.Errorf("mark attempted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
