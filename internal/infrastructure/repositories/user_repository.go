package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/core/ports"
	"github.com/avatarctic/signup-verification/internal/infrastructure/db"
)

// UserRepository implements the permanent user store on the users table
type UserRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(database *db.Database, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		db:     database,
		logger: logger,
	}
}

var _ ports.PermanentUserRepository = (*UserRepository)(nil)

// Create inserts a confirmed user. A taken identity key yields verification.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, u *verification.PermanentUser) error {
	query := `
		INSERT INTO users (id, identity_key, attributes, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.DB.ExecContext(ctx, query, u.ID, u.IdentityKey, u.Attributes, u.CreatedAt)
	if err != nil {
		if uniqueConstraint(err) == usersIdentityConstraint {
			return verification.ErrConflict
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"user_id": u.ID, "identity": u.IdentityKey}).WithError(err).Error("db: failed to create user")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"user_id": u.ID, "identity": u.IdentityKey}).Info("db: user created")
	}
	return nil
}

// GetByIdentity retrieves a user by identity key
func (r *UserRepository) GetByIdentity(ctx context.Context, identityKey string) (*verification.PermanentUser, error) {
	var u verification.PermanentUser
	query := `
		SELECT id, identity_key, attributes, created_at
		FROM users
		WHERE identity_key = $1`

	err := r.db.DB.GetContext(ctx, &u, query, identityKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if r.logger != nil {
				r.logger.WithFields(logrus.Fields{"identity": identityKey}).Debug("db: user not found by identity")
			}
			return nil, verification.ErrNotFound
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"identity": identityKey}).WithError(err).Error("db: failed to get user by identity")
		}
		return nil, fmt.Errorf("failed to get user by identity: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) ExistsByIdentity(ctx context.Context, identityKey string) (bool, error) {
	var exists bool
	err := r.db.DB.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE identity_key = $1)`, identityKey)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}
