package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// StagingStore layers the staging semantics over the raw repositories: identity reservation
// against both staged and permanent records, and query-time expiry filtering.
type StagingStore struct {
	staged    ports.StagedRecordRepository
	permanent ports.PermanentUserRepository
	ttl       time.Duration
	now       func() time.Time
	logger    *logrus.Logger
}

func NewStagingStore(staged ports.StagedRecordRepository, permanent ports.PermanentUserRepository, ttl time.Duration, logger *logrus.Logger) *StagingStore {
	return &StagingStore{staged: staged, permanent: permanent, ttl: ttl, now: time.Now, logger: logger}
}

// WithClock replaces the clock used for expiry checks.
func (s *StagingStore) WithClock(now func() time.Time) *StagingStore {
	s.now = now
	return s
}

var _ ports.StagingStore = (*StagingStore)(nil)

// InsertIfAbsent reserves the identity in the staged repository first, relying on its uniqueness
// constraint, and only then checks the permanent store. Promotion writes the permanent record
// before it releases the staged one, so a successful reservation followed by an empty permanent
// lookup cannot race with a concurrent confirmation of the same identity.
func (s *StagingStore) InsertIfAbsent(ctx context.Context, rec *verification.StagedRecord) (*verification.StagedRecord, error) {
	err := s.staged.Create(ctx, rec)
	if errors.Is(err, verification.ErrConflict) {
		// An expired record that has not been evicted yet must not block the identity.
		evicted, evictErr := s.evictIfExpired(ctx, rec.IdentityKey)
		if evictErr != nil {
			return nil, evictErr
		}
		if !evicted {
			return nil, verification.ErrConflict
		}
		err = s.staged.Create(ctx, rec)
	}
	if err != nil {
		if errors.Is(err, verification.ErrConflict) || errors.Is(err, verification.ErrTokenCollision) {
			return nil, err
		}
		return nil, &verification.PersistenceError{Op: "insert staged record", Err: err}
	}

	if s.permanent == nil {
		return rec, nil
	}
	exists, err := s.permanent.ExistsByIdentity(ctx, rec.IdentityKey)
	if err == nil && !exists {
		return rec, nil
	}
	if delErr := s.staged.DeleteByToken(ctx, rec.Token); delErr != nil && s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identity": rec.IdentityKey}).WithError(delErr).Error("staging: failed to release identity reservation")
	}
	if err != nil {
		return nil, &verification.PersistenceError{Op: "check permanent user", Err: err}
	}
	return nil, verification.ErrConflict
}

func (s *StagingStore) evictIfExpired(ctx context.Context, identityKey string) (bool, error) {
	existing, err := s.staged.GetByIdentity(ctx, identityKey)
	if errors.Is(err, verification.ErrNotFound) {
		// evicted between the failed insert and this lookup
		return true, nil
	}
	if err != nil {
		return false, &verification.PersistenceError{Op: "find staged record by identity", Err: err}
	}
	if !existing.ExpiredAt(s.now(), s.ttl) {
		return false, nil
	}
	if err := s.staged.DeleteByToken(ctx, existing.Token); err != nil {
		return false, &verification.PersistenceError{Op: "evict expired staged record", Err: err}
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identity": identityKey}).Debug("staging: evicted expired record")
	}
	return true, nil
}

func (s *StagingStore) FindByToken(ctx context.Context, token string) (*verification.StagedRecord, error) {
	rec, err := s.staged.GetByToken(ctx, token)
	return s.filter(rec, err, "find staged record by token")
}

func (s *StagingStore) FindByIdentity(ctx context.Context, identityKey string) (*verification.StagedRecord, error) {
	rec, err := s.staged.GetByIdentity(ctx, identityKey)
	return s.filter(rec, err, "find staged record by identity")
}

func (s *StagingStore) filter(rec *verification.StagedRecord, err error, op string) (*verification.StagedRecord, error) {
	if errors.Is(err, verification.ErrNotFound) {
		return nil, verification.ErrNotFound
	}
	if err != nil {
		return nil, &verification.PersistenceError{Op: op, Err: err}
	}
	if rec.ExpiredAt(s.now(), s.ttl) {
		return nil, verification.ErrNotFound
	}
	return rec, nil
}

func (s *StagingStore) DeleteByToken(ctx context.Context, token string) error {
	if err := s.staged.DeleteByToken(ctx, token); err != nil {
		return &verification.PersistenceError{Op: "delete staged record", Err: err}
	}
	return nil
}

// ReissueToken replaces the token of rec, which invalidates the old one. The record keeps its
// original creation time, so the expiry is not extended.
func (s *StagingStore) ReissueToken(ctx context.Context, rec *verification.StagedRecord, newToken string) (*verification.StagedRecord, error) {
	updated, err := s.staged.UpdateToken(ctx, rec.IdentityKey, rec.Token, newToken)
	if err != nil {
		if errors.Is(err, verification.ErrNotFound) || errors.Is(err, verification.ErrTokenCollision) {
			return nil, err
		}
		return nil, &verification.PersistenceError{Op: "reissue token", Err: err}
	}
	return updated, nil
}
