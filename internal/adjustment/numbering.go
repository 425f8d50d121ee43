package adjustment

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sequencer issues human-readable adjustment numbers, sequential per UTC day:
// ADJyyyyMMddNNN.
type Sequencer interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// RedisSequencer issues numbers from a per-day redis counter. Keys expire two
// days after first use.
type RedisSequencer struct {
	client *redis.Client
}

// NewRedisSequencer constructs RedisSequencer.
func NewRedisSequencer(client *redis.Client) *RedisSequencer {
	return &RedisSequencer{client: client}
}

// Next increments the day counter and formats the number.
func (s *RedisSequencer) Next(ctx context.Context, at time.Time) (string, error) {
	day := at.UTC().Format("20060102")
	key := fmt.Sprintf("adjustment:seq:%s", day)
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("adjustment: next sequence: %w", err)
	}
	if n == 1 {
		s.client.Expire(ctx, key, 48*time.Hour)
	}
	return fmt.Sprintf("ADJ%s%03d", day, n), nil
}
