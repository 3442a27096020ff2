package app

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"proctor-quiz-service/internal/domain"
)

// ComposeByQuota assembles a question set from per-category count quotas.
// Categories are visited in sorted order so composition is deterministic;
// randomization is the shuffle step's job, kept separate on purpose.
func ComposeByQuota(ctx context.Context, bank QuestionBank, quotas map[string]int) ([]domain.Question, error) {
	categories := make([]string, 0, len(quotas))
	for category := range quotas {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var out []domain.Question
	for _, category := range categories {
		limit := quotas[category]
		if limit <= 0 {
			continue
		}
		questions, err := bank.FetchByCategory(ctx, category, limit)
		if err != nil {
			return nil, fmt.Errorf("fetch category %q: %w", category, err)
		}
		out = append(out, questions...)
	}
	return out, nil
}

// ShuffleQuestions reorders the set in place. Called exactly once at load;
// navigation afterwards never reorders.
func ShuffleQuestions(questions []domain.Question, rnd *rand.Rand) {
	rnd.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}
