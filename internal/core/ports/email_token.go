package ports

import (
	"context"
	"time"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
)

// StagedRecordRepository persists pending-verification records.
// Implementations may use Redis, Postgres or memory. They must enforce uniqueness of both the
// identity key (returning verification.ErrConflict) and the token (verification.ErrTokenCollision).
type StagedRecordRepository interface {
	Create(ctx context.Context, rec *verification.StagedRecord) error
	GetByToken(ctx context.Context, token string) (*verification.StagedRecord, error)
	GetByIdentity(ctx context.Context, identityKey string) (*verification.StagedRecord, error)
	// DeleteByToken is idempotent; deleting an absent token is not an error.
	DeleteByToken(ctx context.Context, token string) error
	// UpdateToken swaps oldToken for newToken on the record staged under identityKey.
	// It returns verification.ErrNotFound if that record no longer carries oldToken.
	UpdateToken(ctx context.Context, identityKey, oldToken, newToken string) (*verification.StagedRecord, error)
}

// ExpiredRecordSweeper is implemented by stores that do not evict expired records on their own.
type ExpiredRecordSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// StagingStore is the staged-record collection as seen by the verification service.
type StagingStore interface {
	// InsertIfAbsent stages rec unless its identity is already staged or permanent,
	// in which case it returns verification.ErrConflict without mutating anything.
	InsertIfAbsent(ctx context.Context, rec *verification.StagedRecord) (*verification.StagedRecord, error)
	// FindByToken and FindByIdentity treat logically expired records as verification.ErrNotFound.
	FindByToken(ctx context.Context, token string) (*verification.StagedRecord, error)
	FindByIdentity(ctx context.Context, identityKey string) (*verification.StagedRecord, error)
	DeleteByToken(ctx context.Context, token string) error
	ReissueToken(ctx context.Context, rec *verification.StagedRecord, newToken string) (*verification.StagedRecord, error)
}
