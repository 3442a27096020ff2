package memory

import (
	"context"
	"sync"

	"proctor-quiz-service/internal/domain"
)

// StaticQuestionBank serves questions from an in-memory map keyed by
// category (useful for tests/demos).
type StaticQuestionBank struct {
	mu         sync.RWMutex
	byCategory map[string][]domain.Question
}

func NewStaticQuestionBank(byCategory map[string][]domain.Question) *StaticQuestionBank {
	return &StaticQuestionBank{byCategory: byCategory}
}

func (b *StaticQuestionBank) FetchByCategory(_ context.Context, category string, limit int) ([]domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	questions, ok := b.byCategory[category]
	if !ok {
		return nil, domain.ErrQuestionBank
	}
	if limit > len(questions) {
		limit = len(questions)
	}
	out := make([]domain.Question, limit)
	copy(out, questions[:limit])
	return out, nil
}
