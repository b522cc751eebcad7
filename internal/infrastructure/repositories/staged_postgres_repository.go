package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/core/ports"
	"github.com/avatarctic/signup-verification/internal/infrastructure/db"
)

const (
	uniqueViolation = pq.ErrorCode("23505")

	stagedIdentityConstraint = "staged_users_identity_key_key"
	stagedTokenConstraint    = "staged_users_token_key"
	usersIdentityConstraint  = "users_identity_key_key"

	stagedColumns = "id, identity_key, token, attributes, created_at, expires_at"
)

// StagedPostgresRepository stores staged records in the staged_users table.
type StagedPostgresRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewStagedPostgresRepository(database *db.Database, logger *logrus.Logger) *StagedPostgresRepository {
	return &StagedPostgresRepository{db: database, logger: logger}
}

var (
	_ ports.StagedRecordRepository = (*StagedPostgresRepository)(nil)
	_ ports.ExpiredRecordSweeper   = (*StagedPostgresRepository)(nil)
)

func (r *StagedPostgresRepository) Create(ctx context.Context, rec *verification.StagedRecord) error {
	query := `
		INSERT INTO staged_users (id, identity_key, token, attributes, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.DB.ExecContext(ctx, query,
		rec.ID, rec.IdentityKey, rec.Token, rec.Attributes, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		switch uniqueConstraint(err) {
		case stagedIdentityConstraint:
			return verification.ErrConflict
		case stagedTokenConstraint:
			return verification.ErrTokenCollision
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"identity": rec.IdentityKey}).WithError(err).Error("db: failed to create staged record")
		}
		return fmt.Errorf("failed to create staged record: %w", err)
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"identity": rec.IdentityKey, "id": rec.ID}).Debug("db: staged record created")
	}
	return nil
}

func (r *StagedPostgresRepository) GetByToken(ctx context.Context, token string) (*verification.StagedRecord, error) {
	return r.getOne(ctx, `SELECT `+stagedColumns+` FROM staged_users WHERE token = $1`, token)
}

func (r *StagedPostgresRepository) GetByIdentity(ctx context.Context, identityKey string) (*verification.StagedRecord, error) {
	return r.getOne(ctx, `SELECT `+stagedColumns+` FROM staged_users WHERE identity_key = $1`, identityKey)
}

func (r *StagedPostgresRepository) getOne(ctx context.Context, query string, arg string) (*verification.StagedRecord, error) {
	var rec verification.StagedRecord
	if err := r.db.DB.GetContext(ctx, &rec, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, verification.ErrNotFound
		}
		if r.logger != nil {
			r.logger.WithError(err).Error("db: failed to get staged record")
		}
		return nil, fmt.Errorf("failed to get staged record: %w", err)
	}
	return &rec, nil
}

func (r *StagedPostgresRepository) DeleteByToken(ctx context.Context, token string) error {
	if _, err := r.db.DB.ExecContext(ctx, `DELETE FROM staged_users WHERE token = $1`, token); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("db: failed to delete staged record")
		}
		return fmt.Errorf("failed to delete staged record: %w", err)
	}
	return nil
}

func (r *StagedPostgresRepository) UpdateToken(ctx context.Context, identityKey, oldToken, newToken string) (*verification.StagedRecord, error) {
	query := `
		UPDATE staged_users SET token = $3
		WHERE identity_key = $1 AND token = $2
		RETURNING ` + stagedColumns

	var rec verification.StagedRecord
	err := r.db.DB.GetContext(ctx, &rec, query, identityKey, oldToken, newToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, verification.ErrNotFound
		}
		if uniqueConstraint(err) == stagedTokenConstraint {
			return nil, verification.ErrTokenCollision
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"identity": identityKey}).WithError(err).Error("db: failed to update staged token")
		}
		return nil, fmt.Errorf("failed to update staged token: %w", err)
	}
	return &rec, nil
}

func (r *StagedPostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM staged_users WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired staged records: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// uniqueConstraint returns the violated constraint name for a unique violation, or "".
func uniqueConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint
	}
	return ""
}
