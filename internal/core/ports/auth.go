package ports

import (
	"context"

	"github.com/avatarctic/signup-verification/internal/core/domain/auth"
	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
)

// SessionIssuer hands out access tokens to users that just confirmed their signup
type SessionIssuer interface {
	IssueTokens(ctx context.Context, u *verification.PermanentUser) (*auth.AuthTokens, error)
	ValidateToken(ctx context.Context, token string) (*auth.Claims, error)
}
