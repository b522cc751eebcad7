package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// StagedMemoryRepository keeps staged records in process memory, indexed by token and identity.
type StagedMemoryRepository struct {
	mu         sync.RWMutex
	byToken    map[string]*verification.StagedRecord
	byIdentity map[string]string
}

func NewStagedMemoryRepository() *StagedMemoryRepository {
	return &StagedMemoryRepository{
		byToken:    make(map[string]*verification.StagedRecord),
		byIdentity: make(map[string]string),
	}
}

var (
	_ ports.StagedRecordRepository = (*StagedMemoryRepository)(nil)
	_ ports.ExpiredRecordSweeper   = (*StagedMemoryRepository)(nil)
)

func (r *StagedMemoryRepository) Create(_ context.Context, rec *verification.StagedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byIdentity[rec.IdentityKey]; ok {
		return verification.ErrConflict
	}
	if _, ok := r.byToken[rec.Token]; ok {
		return verification.ErrTokenCollision
	}
	r.byToken[rec.Token] = copyStaged(rec)
	r.byIdentity[rec.IdentityKey] = rec.Token
	return nil
}

func (r *StagedMemoryRepository) GetByToken(_ context.Context, token string) (*verification.StagedRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byToken[token]
	if !ok {
		return nil, verification.ErrNotFound
	}
	return copyStaged(rec), nil
}

func (r *StagedMemoryRepository) GetByIdentity(_ context.Context, identityKey string) (*verification.StagedRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.byIdentity[identityKey]
	if !ok {
		return nil, verification.ErrNotFound
	}
	return copyStaged(r.byToken[token]), nil
}

func (r *StagedMemoryRepository) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteLocked(token)
	return nil
}

func (r *StagedMemoryRepository) deleteLocked(token string) {
	rec, ok := r.byToken[token]
	if !ok {
		return
	}
	delete(r.byToken, token)
	if r.byIdentity[rec.IdentityKey] == token {
		delete(r.byIdentity, rec.IdentityKey)
	}
}

func (r *StagedMemoryRepository) UpdateToken(_ context.Context, identityKey, oldToken, newToken string) (*verification.StagedRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byIdentity[identityKey] != oldToken {
		return nil, verification.ErrNotFound
	}
	rec, ok := r.byToken[oldToken]
	if !ok {
		return nil, verification.ErrNotFound
	}
	if _, taken := r.byToken[newToken]; taken {
		return nil, verification.ErrTokenCollision
	}
	delete(r.byToken, oldToken)
	rec.Token = newToken
	r.byToken[newToken] = rec
	r.byIdentity[identityKey] = newToken
	return copyStaged(rec), nil
}

func (r *StagedMemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, rec := range r.byToken {
		if rec.ExpiresAt.Before(now) {
			r.deleteLocked(token)
			n++
		}
	}
	return n, nil
}

func copyStaged(rec *verification.StagedRecord) *verification.StagedRecord {
	cp := *rec
	cp.Attributes = rec.Attributes.Clone()
	return &cp
}

// PermanentMemoryRepository is the in-memory permanent user store.
type PermanentMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*verification.PermanentUser
}

func NewPermanentMemoryRepository() *PermanentMemoryRepository {
	return &PermanentMemoryRepository{users: make(map[string]*verification.PermanentUser)}
}

var _ ports.PermanentUserRepository = (*PermanentMemoryRepository)(nil)

func (r *PermanentMemoryRepository) Create(_ context.Context, u *verification.PermanentUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.IdentityKey]; ok {
		return verification.ErrConflict
	}
	cp := *u
	cp.Attributes = u.Attributes.Clone()
	r.users[u.IdentityKey] = &cp
	return nil
}

func (r *PermanentMemoryRepository) GetByIdentity(_ context.Context, identityKey string) (*verification.PermanentUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[identityKey]
	if !ok {
		return nil, verification.ErrNotFound
	}
	cp := *u
	cp.Attributes = u.Attributes.Clone()
	return &cp, nil
}

func (r *PermanentMemoryRepository) ExistsByIdentity(_ context.Context, identityKey string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[identityKey]
	return ok, nil
}
