package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptFlagCache keeps a fast-path copy of the has-attempted flag:
//
//	SET quiz:attempted:{userID} "1" EX <ttl>
//
// It is a UX optimization on top of the profile store; the attempt store's
// unique constraint stays authoritative. All operations are best-effort.
type Profiles interface {
	HasAttempted(ctx context.Context, userID string) (bool, error)
	IsPaymentVerified(ctx context.Context, userID string) (bool, error)
	MarkAttempted(ctx context.Context, userID string, completedAt time.Time) error
}

type AttemptFlagCache struct {
	client   *redis.Client
	profiles Profiles
	ttl      time.Duration
}

func NewAttemptFlagCache(client *redis.Client, profiles Profiles, ttl time.Duration) *AttemptFlagCache {
	return &AttemptFlagCache{client: client, profiles: profiles, ttl: ttl}
}

func (c *AttemptFlagCache) HasAttempted(ctx context.Context, userID string) (bool, error) {
	if n, err := c.client.Exists(ctx, c.key(userID)).Result(); err == nil && n > 0 {
		return true, nil
	}
	attempted, err := c.profiles.HasAttempted(ctx, userID)
	if err != nil {
		return false, err
	}
	if attempted {
		_ = c.client.Set(ctx, c.key(userID), "1", c.ttl).Err()
	}
	return attempted, nil
}

func (c *AttemptFlagCache) IsPaymentVerified(ctx context.Context, userID string) (bool, error) {
	return c.profiles.IsPaymentVerified(ctx, userID)
}

func (c *AttemptFlagCache) MarkAttempted(ctx context.Context, userID string, completedAt time.Time) error {
	if err := c.profiles.MarkAttempted(ctx, userID, completedAt); err != nil {
		return err
	}
	_ = c.client.Set(ctx, c.key(userID), "1", c.ttl).Err()
	return nil
}

func (c *AttemptFlagCache) key(userID string) string {
	return "quiz:attempted:" + userID
}
