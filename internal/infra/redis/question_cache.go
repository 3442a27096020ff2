package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"proctor-quiz-service/internal/domain"
)

// QuestionCache fronts a question bank with a per-category Redis cache.
// Each category/limit pair is stored as one JSON blob:
//
//	SET quiz:questions:{category}:{limit} <json> EX <ttl>
//
// Cache misses collapse through singleflight so a cold start does not
// stampede the backing store.
type QuestionCache struct {
	client *redis.Client
	bank   Bank
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

// Bank is the backing question source (Postgres in production).
type Bank interface {
	FetchByCategory(ctx context.Context, category string, limit int) ([]domain.Question, error)
}

func NewQuestionCache(client *redis.Client, bank Bank, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		bank:   bank,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) FetchByCategory(ctx context.Context, category string, limit int) ([]domain.Question, error) {
	key := c.key(category, limit)

	if questions, ok := c.lookup(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.lookup(ctx, key); ok {
			return questions, nil
		}

		questions, err := c.bank.FetchByCategory(ctx, category, limit)
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(questions); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) lookup(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) key(category string, limit int) string {
	return fmt.Sprintf("quiz:questions:%s:%d", category, limit)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
