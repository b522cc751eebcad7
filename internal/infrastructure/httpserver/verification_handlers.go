package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/domain/auth"
	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
)

// resendHint tells the client how to recover when the signup was staged but not mailed.
const resendHint = "signup saved but the verification email could not be sent; request a new one via POST /api/v1/resend-verification"

type confirmResponse struct {
	User   *verification.PermanentUser `json:"user"`
	Tokens *auth.AuthTokens            `json:"tokens,omitempty"`
}

type resendResponse struct {
	Found bool `json:"found"`
}

func (s *Server) signup(c echo.Context) error {
	var req verification.SignupRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || req == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object")
	}

	ctx := c.Request().Context()
	opts := s.verification.Options()

	rec, err := s.verification.CreateTempUser(ctx, verification.Attributes(req))
	if err != nil {
		return s.verificationError(err)
	}
	if rec == nil {
		return echo.NewHTTPError(http.StatusConflict, "identity is already registered or awaiting verification")
	}

	if _, err := s.verification.SendVerificationEmail(ctx, rec.IdentityKey, rec.Token); err != nil {
		var deliveryErr *verification.DeliveryError
		if errors.As(err, &deliveryErr) {
			// the record stays staged, so a repeated signup would conflict
			s.logError(err, "verification email delivery failed after staging")
			return echo.NewHTTPError(http.StatusBadGateway, resendHint)
		}
		return s.verificationError(err)
	}

	resp := verification.Attributes(rec.Document(opts.TokenField)).Without(opts.PasswordField)
	if s.config == nil || !s.config.ExposeToken {
		resp.Delete(opts.TokenField)
	}
	if err := resp.Set(opts.IdentityField, rec.IdentityKey); err != nil {
		return s.verificationError(err)
	}
	resp["expires_at"] = rec.ExpiresAt.UTC().Format(time.RFC3339)
	return c.JSON(http.StatusCreated, resp)
}

// verifyEmail serves both the emailed link (GET ?token=) and API calls (POST {"token": ...}).
func (s *Server) verifyEmail(c echo.Context) error {
	var req verification.VerifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Token == "" {
		req.Token = c.QueryParam("token")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	user, err := s.verification.ConfirmTempUser(ctx, req.Token)
	if err != nil {
		return s.verificationError(err)
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusNotFound, "verification link is invalid or has expired")
	}

	opts := s.verification.Options()
	resp := confirmResponse{
		User: &verification.PermanentUser{
			ID:          user.ID,
			IdentityKey: user.IdentityKey,
			Attributes:  user.Attributes.Without(opts.PasswordField),
			CreatedAt:   user.CreatedAt,
		},
	}
	if s.sessions != nil {
		tokens, err := s.sessions.IssueTokens(ctx, user)
		if err != nil {
			// the account exists now; the client can still sign in normally
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{"user_id": user.ID}).WithError(err).Warn("failed to issue session after confirmation")
			}
		} else {
			resp.Tokens = tokens
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) resendVerificationEmail(c echo.Context) error {
	var req verification.ResendVerificationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	found, err := s.verification.ResendVerificationEmail(c.Request().Context(), req.Email)
	if err != nil {
		return s.verificationError(err)
	}
	return c.JSON(http.StatusOK, resendResponse{Found: found})
}

// verificationError maps service failures onto HTTP status codes.
func (s *Server) verificationError(err error) error {
	var (
		deliveryErr    *verification.DeliveryError
		persistenceErr *verification.PersistenceError
	)
	switch {
	case errors.Is(err, verification.ErrInvalidCandidate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, verification.ErrConfiguration):
		s.logError(err, "verification is misconfigured")
		return echo.NewHTTPError(http.StatusInternalServerError, "verification is not configured")
	case errors.As(err, &deliveryErr):
		s.logError(err, "verification email delivery failed")
		return echo.NewHTTPError(http.StatusBadGateway, "failed to send email")
	case errors.As(err, &persistenceErr):
		s.logError(err, "verification storage failure")
		return echo.NewHTTPError(http.StatusInternalServerError, "storage failure")
	default:
		s.logError(err, "verification failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) logError(err error, msg string) {
	if s.logger != nil {
		s.logger.WithError(err).Error(msg)
	}
}
