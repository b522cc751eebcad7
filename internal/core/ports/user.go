package ports

import (
	"context"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
)

// PermanentUserRepository defines the permanent user store. Create must return
// verification.ErrConflict when the identity key is already taken.
type PermanentUserRepository interface {
	Create(ctx context.Context, u *verification.PermanentUser) error
	GetByIdentity(ctx context.Context, identityKey string) (*verification.PermanentUser, error)
	ExistsByIdentity(ctx context.Context, identityKey string) (bool, error)
}

// VerificationService defines the signup verification state machine
type VerificationService interface {
	// CreateTempUser stages a candidate. It returns (nil, nil) when the identity is already taken.
	CreateTempUser(ctx context.Context, candidate verification.Attributes) (*verification.StagedRecord, error)
	SendVerificationEmail(ctx context.Context, email, token string) (*DeliveryInfo, error)
	SendConfirmationEmail(ctx context.Context, email string) (*DeliveryInfo, error)
	// ConfirmTempUser promotes the staged record behind token. It returns (nil, nil)
	// when the token is unknown or expired.
	ConfirmTempUser(ctx context.Context, token string) (*verification.PermanentUser, error)
	ResendVerificationEmail(ctx context.Context, email string) (bool, error)
	Options() verification.Options
}

// TokenGenerator mints opaque, URL-safe verification tokens
type TokenGenerator interface {
	Generate(length int) (string, error)
}

// Hasher prepares a staged record before it is inserted, typically by replacing the raw
// password with a hash. Synchronous and asynchronous implementations share this call site.
type Hasher interface {
	Process(ctx context.Context, password string, rec *verification.StagedRecord) (*verification.StagedRecord, error)
}

// HasherFunc adapts a function to Hasher.
type HasherFunc func(ctx context.Context, password string, rec *verification.StagedRecord) (*verification.StagedRecord, error)

func (f HasherFunc) Process(ctx context.Context, password string, rec *verification.StagedRecord) (*verification.StagedRecord, error) {
	return f(ctx, password, rec)
}
