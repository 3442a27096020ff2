package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"proctor-quiz-service/internal/domain"
)

// AttemptStore persists attempt records. The table carries a unique
// constraint on user_id; this store is the authoritative one-attempt guard.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) Save(ctx context.Context, record domain.AttemptRecord) error {
	breakdown, err := json.Marshal(record.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	violations, err := json.Marshal(record.Violations)
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_attempts
			(id, user_id, score, total_questions, time_taken,
			 quiz_data, device_fingerprint, violations, forced, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO NOTHING`,
		record.ID, record.UserID, record.Score, record.TotalQuestions,
		record.TimeTakenSeconds, breakdown, record.DeviceFingerprint,
		violations, record.Forced, record.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptExists
	}
	return nil
}

// Get fetches the attempt for a user.
func (s *AttemptStore) Get(ctx context.Context, userID string) (domain.AttemptRecord, error) {
	var (
		record     domain.AttemptRecord
		breakdown  []byte
		violations []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, score, total_questions, time_taken,
		       quiz_data, device_fingerprint, violations, forced, submitted_at
		FROM quiz_attempts WHERE user_id = $1`, userID).
		Scan(&record.ID, &record.UserID, &record.Score, &record.TotalQuestions,
			&record.TimeTakenSeconds, &breakdown, &record.DeviceFingerprint,
			&violations, &record.Forced, &record.SubmittedAt)
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("load attempt: %w", err)
	}
	if err := json.Unmarshal(breakdown, &record.Breakdown); err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	if err := json.Unmarshal(violations, &record.Violations); err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("unmarshal violations: %w", err)
	}
	return record, nil
}
