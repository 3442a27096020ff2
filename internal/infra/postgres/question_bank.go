package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"proctor-quiz-service/internal/domain"
)

// QuestionBank loads question rows from Postgres.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) FetchByCategory(ctx context.Context, category string, limit int) ([]domain.Question, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT id, prompt, option_a, option_b, option_c, option_d,
		       correct_label, category, COALESCE(explanation, '')
		FROM questions
		WHERE category = $1
		ORDER BY random()
		LIMIT $2`, category, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Prompt, &q.OptionA, &q.OptionB, &q.OptionC,
			&q.OptionD, &q.CorrectLabel, &q.Category, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}
