package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/signup-verification/configs"
	"github.com/avatarctic/signup-verification/internal/core/domain/auth"
	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// JWTSessionIssuer signs short-lived HS256 access tokens for users that just confirmed.
type JWTSessionIssuer struct {
	jwtConfig *config.JWTConfig
	logger    *logrus.Logger
	now       func() time.Time
}

func NewJWTSessionIssuer(jwtConfig *config.JWTConfig, logger *logrus.Logger) (*JWTSessionIssuer, error) {
	if jwtConfig == nil || jwtConfig.Secret == "" {
		return nil, verification.ConfigErrorf("jwt secret must be set")
	}
	return &JWTSessionIssuer{jwtConfig: jwtConfig, logger: logger, now: time.Now}, nil
}

var _ ports.SessionIssuer = (*JWTSessionIssuer)(nil)

func (s *JWTSessionIssuer) IssueTokens(_ context.Context, u *verification.PermanentUser) (*auth.AuthTokens, error) {
	now := s.now()
	claims := &auth.Claims{
		UserID:   u.ID,
		Identity: u.IdentityKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    s.jwtConfig.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessTokenString, err := accessToken.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"user_id": u.ID}).Debug("session: access token issued")
	}
	return &auth.AuthTokens{
		AccessToken: accessTokenString,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtConfig.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *JWTSessionIssuer) ValidateToken(_ context.Context, tokenString string) (*auth.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &auth.Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure the token's signing method is HMAC (prevent alg confusion)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(*auth.Claims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
