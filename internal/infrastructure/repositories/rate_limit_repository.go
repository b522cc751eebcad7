package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimitRedisRepository implements rate limiting counter storage with Redis.
type RateLimitRedisRepository struct {
	r redis.Cmdable
}

func NewRateLimitRedisRepository(r redis.Cmdable) *RateLimitRedisRepository {
	return &RateLimitRedisRepository{r: r}
}

// IncrementWindow increments a per-key counter for a fixed window.
func (repo *RateLimitRedisRepository) IncrementWindow(ctx context.Context, key string, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error) {
	windowStart := time.Now().Truncate(window)
	redisKey := fmt.Sprintf("%s:%s:%d", keyPrefix, key, windowStart.Unix())
	pipe := repo.r.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, windowStart, err
	}
	return int(incr.Val()), windowStart, nil
}

// RateLimitMemoryRepository keeps window counters in process memory for single-node deployments.
type RateLimitMemoryRepository struct {
	mu       sync.Mutex
	counters map[string]memoryCounter
	now      func() time.Time
}

type memoryCounter struct {
	count     int
	expiresAt time.Time
}

func NewRateLimitMemoryRepository() *RateLimitMemoryRepository {
	return &RateLimitMemoryRepository{counters: make(map[string]memoryCounter), now: time.Now}
}

func (repo *RateLimitMemoryRepository) IncrementWindow(_ context.Context, key string, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error) {
	now := repo.now()
	windowStart := now.Truncate(window)
	counterKey := fmt.Sprintf("%s:%s:%d", keyPrefix, key, windowStart.Unix())

	repo.mu.Lock()
	defer repo.mu.Unlock()
	for k, c := range repo.counters {
		if now.After(c.expiresAt) {
			delete(repo.counters, k)
		}
	}
	c := repo.counters[counterKey]
	c.count++
	c.expiresAt = now.Add(ttl)
	repo.counters[counterKey] = c
	return c.count, windowStart, nil
}
