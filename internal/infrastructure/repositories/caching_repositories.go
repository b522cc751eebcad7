package repositories

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// Utility helpers
func cacheSetSilently(c ports.Cache, ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Set(ctx, key, b, ttl)
}

func cacheGet[T any](c ports.Cache, ctx context.Context, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// CachingUserRepository decorates a PermanentUserRepository with cache-aside reads by identity.
// Only hits are cached; a miss always reaches the inner store so a freshly confirmed user
// is never reported absent.
type CachingUserRepository struct {
	inner ports.PermanentUserRepository
	cache ports.Cache
	ttl   time.Duration
	sf    singleflight.Group
}

func NewCachingUserRepository(inner ports.PermanentUserRepository, cache ports.Cache, ttl time.Duration) *CachingUserRepository {
	return &CachingUserRepository{inner: inner, cache: cache, ttl: ttl}
}

var _ ports.PermanentUserRepository = (*CachingUserRepository)(nil)

func userCacheKey(identityKey string) string {
	return "user:identity:" + identityKey
}

func (c *CachingUserRepository) Create(ctx context.Context, u *verification.PermanentUser) error {
	if err := c.inner.Create(ctx, u); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.Delete(ctx, userCacheKey(u.IdentityKey))
	}
	return nil
}

func (c *CachingUserRepository) GetByIdentity(ctx context.Context, identityKey string) (*verification.PermanentUser, error) {
	key := userCacheKey(identityKey)
	if v, ok := cacheGet[verification.PermanentUser](c.cache, ctx, key); ok {
		return v, nil
	}
	res, err, _ := c.sf.Do(key, func() (any, error) {
		u, err := c.inner.GetByIdentity(ctx, identityKey)
		if err != nil {
			return nil, err
		}
		cacheSetSilently(c.cache, ctx, key, u, c.ttl)
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	u := *res.(*verification.PermanentUser)
	u.Attributes = u.Attributes.Clone()
	return &u, nil
}

func (c *CachingUserRepository) ExistsByIdentity(ctx context.Context, identityKey string) (bool, error) {
	if _, ok := cacheGet[verification.PermanentUser](c.cache, ctx, userCacheKey(identityKey)); ok {
		return true, nil
	}
	return c.inner.ExistsByIdentity(ctx, identityKey)
}
