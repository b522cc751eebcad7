package health

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// Pinger is anything that can report liveness, such as *db.Database.
type Pinger interface {
	Ping(ctx context.Context) error
}

type pingChecker struct {
	name string
	p    Pinger
}

func (c *pingChecker) Name() string                    { return c.name }
func (c *pingChecker) Check(ctx context.Context) error { return c.p.Ping(ctx) }

type redisHealthChecker struct{ client redis.Cmdable }

func (r *redisHealthChecker) Name() string                    { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// NewDBHealthChecker creates a health checker for the Postgres database.
func NewDBHealthChecker(db Pinger) ports.HealthChecker {
	return &pingChecker{name: "database", p: db}
}

// NewRedisHealthChecker creates a health checker for Redis.
func NewRedisHealthChecker(client redis.Cmdable) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}

// Checkers drops the probes for backends that are not configured.
func Checkers(candidates ...ports.HealthChecker) []ports.HealthChecker {
	out := make([]ports.HealthChecker, 0, len(candidates))
	for _, c := range candidates {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
