package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/core/ports"
)

const (
	// stagedKeyPrefix prefixes Redis keys for staged signups.
	// It's a static prefix and not a credential; silence gosec G101 here.
	stagedKeyPrefix = "app:staged" //nolint:gosec
)

// createStaged sets both keys only when neither the identity nor the token is taken.
// Returns 0 on success, 1 on identity conflict and 2 on token collision.
var createStaged = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 1 end
if redis.call('EXISTS', KEYS[2]) == 1 then return 2 end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 0
`)

// deleteStaged removes the token key and the identity key if it still points at that token.
var deleteStaged = redis.NewScript(`
redis.call('DEL', KEYS[2])
if redis.call('GET', KEYS[1]) == ARGV[1] then redis.call('DEL', KEYS[1]) end
return 1
`)

// swapToken moves the record from the old token key to the new one, keeping the remaining TTL.
// Returns 0 on success, 1 when the identity no longer carries the old token and 2 on collision.
var swapToken = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then return 1 end
local ttl = redis.call('PTTL', KEYS[2])
if ttl <= 0 then return 1 end
if redis.call('EXISTS', KEYS[3]) == 1 then return 2 end
redis.call('SET', KEYS[3], ARGV[3], 'PX', ttl)
redis.call('DEL', KEYS[2])
redis.call('SET', KEYS[1], ARGV[2], 'PX', ttl)
return 0
`)

// StagedRedisRepository stores staged records under two keys: one per token holding the
// record and one per identity holding the token. Both expire with the record.
type StagedRedisRepository struct {
	r      redis.Cmdable
	logger *logrus.Logger
	now    func() time.Time
}

func NewStagedRedisRepository(r redis.Cmdable, logger *logrus.Logger) *StagedRedisRepository {
	return &StagedRedisRepository{r: r, logger: logger, now: time.Now}
}

var _ ports.StagedRecordRepository = (*StagedRedisRepository)(nil)

func (r *StagedRedisRepository) keyByToken(token string) string {
	return fmt.Sprintf("%s:tok:%s", stagedKeyPrefix, token)
}

func (r *StagedRedisRepository) keyByIdentity(identityKey string) string {
	return fmt.Sprintf("%s:id:%s", stagedKeyPrefix, identityKey)
}

func (r *StagedRedisRepository) Create(ctx context.Context, rec *verification.StagedRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal staged record: %w", err)
	}

	ttl := rec.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("staged record already expired")
	}

	res, err := createStaged.Run(ctx, r.r,
		[]string{r.keyByIdentity(rec.IdentityKey), r.keyByToken(rec.Token)},
		rec.Token, b, ttl.Milliseconds()).Int()
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"identity": rec.IdentityKey}).WithError(err).Error("redis: failed to store staged record")
		}
		return fmt.Errorf("failed to store staged record in redis: %w", err)
	}
	switch res {
	case 1:
		return verification.ErrConflict
	case 2:
		return verification.ErrTokenCollision
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"identity": rec.IdentityKey, "ttl": ttl}).Debug("redis: staged record stored")
	}
	return nil
}

func (r *StagedRedisRepository) GetByToken(ctx context.Context, token string) (*verification.StagedRecord, error) {
	b, err := r.r.Get(ctx, r.keyByToken(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, verification.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get staged record from redis: %w", err)
	}

	var rec verification.StagedRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal staged record: %w", err)
	}
	return &rec, nil
}

func (r *StagedRedisRepository) GetByIdentity(ctx context.Context, identityKey string) (*verification.StagedRecord, error) {
	token, err := r.r.Get(ctx, r.keyByIdentity(identityKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, verification.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get staged token by identity: %w", err)
	}
	return r.GetByToken(ctx, token)
}

func (r *StagedRedisRepository) DeleteByToken(ctx context.Context, token string) error {
	rec, err := r.GetByToken(ctx, token)
	if errors.Is(err, verification.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	err = deleteStaged.Run(ctx, r.r,
		[]string{r.keyByIdentity(rec.IdentityKey), r.keyByToken(token)}, token).Err()
	if err != nil {
		return fmt.Errorf("failed to delete staged record keys: %w", err)
	}
	return nil
}

func (r *StagedRedisRepository) UpdateToken(ctx context.Context, identityKey, oldToken, newToken string) (*verification.StagedRecord, error) {
	rec, err := r.GetByToken(ctx, oldToken)
	if err != nil {
		return nil, err
	}
	if rec.IdentityKey != identityKey {
		return nil, verification.ErrNotFound
	}
	rec.Token = newToken
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal staged record: %w", err)
	}

	res, err := swapToken.Run(ctx, r.r,
		[]string{r.keyByIdentity(identityKey), r.keyByToken(oldToken), r.keyByToken(newToken)},
		oldToken, newToken, b).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to swap staged token: %w", err)
	}
	switch res {
	case 1:
		return nil, verification.ErrNotFound
	case 2:
		return nil, verification.ErrTokenCollision
	}
	return rec, nil
}
