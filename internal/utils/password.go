package utils

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
)

// BcryptHasher replaces the raw password of a staged record with its bcrypt hash.
type BcryptHasher struct {
	field string
	cost  int
}

// NewBcryptHasher hashes the value stored at the dotted path field.
// A non-positive cost selects bcrypt.DefaultCost.
func NewBcryptHasher(field string, cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{field: field, cost: cost}
}

func (h *BcryptHasher) Process(ctx context.Context, password string, rec *verification.StagedRecord) (*verification.StagedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := rec.Attributes.Set(h.field, string(hashed)); err != nil {
		return nil, fmt.Errorf("failed to store hashed password: %w", err)
	}
	return rec, nil
}

// VerifyPassword compares a stored bcrypt hash with a candidate password.
func VerifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
