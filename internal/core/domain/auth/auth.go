package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthTokens represents the tokens handed out after a successful confirmation
type AuthTokens struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Claims represents JWT claims for a freshly confirmed user
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Identity string    `json:"identity"`

	jwt.RegisteredClaims
}
