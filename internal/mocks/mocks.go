package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avatarctic/signup-verification/internal/core/domain/auth"
	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/core/ports"
)

// StagedRecordRepositoryMock is a lightweight mock for StagedRecordRepository
type StagedRecordRepositoryMock struct {
	CreateFn        func(ctx context.Context, rec *verification.StagedRecord) error
	GetByTokenFn    func(ctx context.Context, token string) (*verification.StagedRecord, error)
	GetByIdentityFn func(ctx context.Context, identityKey string) (*verification.StagedRecord, error)
	DeleteByTokenFn func(ctx context.Context, token string) error
	UpdateTokenFn   func(ctx context.Context, identityKey, oldToken, newToken string) (*verification.StagedRecord, error)
}

func (m *StagedRecordRepositoryMock) Create(ctx context.Context, rec *verification.StagedRecord) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, rec)
	}
	return nil
}
func (m *StagedRecordRepositoryMock) GetByToken(ctx context.Context, token string) (*verification.StagedRecord, error) {
	if m.GetByTokenFn != nil {
		return m.GetByTokenFn(ctx, token)
	}
	return nil, verification.ErrNotFound
}
func (m *StagedRecordRepositoryMock) GetByIdentity(ctx context.Context, identityKey string) (*verification.StagedRecord, error) {
	if m.GetByIdentityFn != nil {
		return m.GetByIdentityFn(ctx, identityKey)
	}
	return nil, verification.ErrNotFound
}
func (m *StagedRecordRepositoryMock) DeleteByToken(ctx context.Context, token string) error {
	if m.DeleteByTokenFn != nil {
		return m.DeleteByTokenFn(ctx, token)
	}
	return nil
}
func (m *StagedRecordRepositoryMock) UpdateToken(ctx context.Context, identityKey, oldToken, newToken string) (*verification.StagedRecord, error) {
	if m.UpdateTokenFn != nil {
		return m.UpdateTokenFn(ctx, identityKey, oldToken, newToken)
	}
	return nil, verification.ErrNotFound
}

// PermanentUserRepositoryMock is a lightweight mock for PermanentUserRepository
type PermanentUserRepositoryMock struct {
	CreateFn           func(ctx context.Context, u *verification.PermanentUser) error
	GetByIdentityFn    func(ctx context.Context, identityKey string) (*verification.PermanentUser, error)
	ExistsByIdentityFn func(ctx context.Context, identityKey string) (bool, error)
}

func (m *PermanentUserRepositoryMock) Create(ctx context.Context, u *verification.PermanentUser) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, u)
	}
	return nil
}
func (m *PermanentUserRepositoryMock) GetByIdentity(ctx context.Context, identityKey string) (*verification.PermanentUser, error) {
	if m.GetByIdentityFn != nil {
		return m.GetByIdentityFn(ctx, identityKey)
	}
	return nil, verification.ErrNotFound
}
func (m *PermanentUserRepositoryMock) ExistsByIdentity(ctx context.Context, identityKey string) (bool, error) {
	if m.ExistsByIdentityFn != nil {
		return m.ExistsByIdentityFn(ctx, identityKey)
	}
	return false, nil
}

// ExpiredRecordSweeperMock is a lightweight mock for ExpiredRecordSweeper
type ExpiredRecordSweeperMock struct {
	DeleteExpiredFn func(ctx context.Context, now time.Time) (int64, error)
}

func (m *ExpiredRecordSweeperMock) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFn != nil {
		return m.DeleteExpiredFn(ctx, now)
	}
	return 0, nil
}

// NotifierMock records every message it is asked to send
type NotifierMock struct {
	SendFn func(ctx context.Context, msg *ports.Message) (*ports.DeliveryInfo, error)

	mu   sync.Mutex
	sent []*ports.Message
}

func (m *NotifierMock) Send(ctx context.Context, msg *ports.Message) (*ports.DeliveryInfo, error) {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFn != nil {
		return m.SendFn(ctx, msg)
	}
	return &ports.DeliveryInfo{Provider: "mock", Accepted: []string{msg.To}}, nil
}

// Sent returns a copy of the messages handed to Send so far.
func (m *NotifierMock) Sent() []*ports.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ports.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// TokenGeneratorMock returns Tokens in order, then falls back to GenerateFn or a counter
type TokenGeneratorMock struct {
	Tokens     []string
	GenerateFn func(length int) (string, error)

	mu    sync.Mutex
	calls int
}

func (m *TokenGeneratorMock) Generate(length int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= len(m.Tokens) {
		return m.Tokens[m.calls-1], nil
	}
	if m.GenerateFn != nil {
		return m.GenerateFn(length)
	}
	return fmt.Sprintf("token-%d", m.calls), nil
}

// Calls reports how many tokens were requested.
func (m *TokenGeneratorMock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// VerificationServiceMock is a lightweight mock for VerificationService
type VerificationServiceMock struct {
	CreateTempUserFn          func(ctx context.Context, candidate verification.Attributes) (*verification.StagedRecord, error)
	SendVerificationEmailFn   func(ctx context.Context, email, token string) (*ports.DeliveryInfo, error)
	SendConfirmationEmailFn   func(ctx context.Context, email string) (*ports.DeliveryInfo, error)
	ConfirmTempUserFn         func(ctx context.Context, token string) (*verification.PermanentUser, error)
	ResendVerificationEmailFn func(ctx context.Context, email string) (bool, error)
	Opts                      *verification.Options
}

func (m *VerificationServiceMock) CreateTempUser(ctx context.Context, candidate verification.Attributes) (*verification.StagedRecord, error) {
	if m.CreateTempUserFn != nil {
		return m.CreateTempUserFn(ctx, candidate)
	}
	return nil, nil
}
func (m *VerificationServiceMock) SendVerificationEmail(ctx context.Context, email, token string) (*ports.DeliveryInfo, error) {
	if m.SendVerificationEmailFn != nil {
		return m.SendVerificationEmailFn(ctx, email, token)
	}
	return &ports.DeliveryInfo{Provider: "mock"}, nil
}
func (m *VerificationServiceMock) SendConfirmationEmail(ctx context.Context, email string) (*ports.DeliveryInfo, error) {
	if m.SendConfirmationEmailFn != nil {
		return m.SendConfirmationEmailFn(ctx, email)
	}
	return &ports.DeliveryInfo{Provider: "mock"}, nil
}
func (m *VerificationServiceMock) ConfirmTempUser(ctx context.Context, token string) (*verification.PermanentUser, error) {
	if m.ConfirmTempUserFn != nil {
		return m.ConfirmTempUserFn(ctx, token)
	}
	return nil, nil
}
func (m *VerificationServiceMock) ResendVerificationEmail(ctx context.Context, email string) (bool, error) {
	if m.ResendVerificationEmailFn != nil {
		return m.ResendVerificationEmailFn(ctx, email)
	}
	return false, nil
}
func (m *VerificationServiceMock) Options() verification.Options {
	if m.Opts != nil {
		return *m.Opts
	}
	return verification.DefaultOptions()
}

// SessionIssuerMock is a lightweight mock for SessionIssuer
type SessionIssuerMock struct {
	IssueTokensFn   func(ctx context.Context, u *verification.PermanentUser) (*auth.AuthTokens, error)
	ValidateTokenFn func(ctx context.Context, token string) (*auth.Claims, error)
}

func (m *SessionIssuerMock) IssueTokens(ctx context.Context, u *verification.PermanentUser) (*auth.AuthTokens, error) {
	if m.IssueTokensFn != nil {
		return m.IssueTokensFn(ctx, u)
	}
	return &auth.AuthTokens{AccessToken: "access", TokenType: "Bearer", ExpiresIn: 900}, nil
}
func (m *SessionIssuerMock) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, token)
	}
	return nil, fmt.Errorf("invalid token")
}

// RateLimiterServiceMock is a lightweight mock for RateLimiterService
type RateLimiterServiceMock struct {
	AllowFn func(ctx context.Context, key string) (bool, int, int, time.Time, error)
}

func (m *RateLimiterServiceMock) Allow(ctx context.Context, key string) (bool, int, int, time.Time, error) {
	if m.AllowFn != nil {
		return m.AllowFn(ctx, key)
	}
	return true, 10, 10, time.Now().Add(time.Minute), nil
}

// RateLimitRepositoryMock is a lightweight mock for RateLimitRepository
type RateLimitRepositoryMock struct {
	IncrementWindowFn func(ctx context.Context, key string, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error)
}

func (m *RateLimitRepositoryMock) IncrementWindow(ctx context.Context, key string, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error) {
	if m.IncrementWindowFn != nil {
		return m.IncrementWindowFn(ctx, key, window, keyPrefix, ttl)
	}
	return 1, time.Now().Truncate(window), nil
}

// HealthCheckerMock is a lightweight mock for HealthChecker
type HealthCheckerMock struct {
	NameValue string
	CheckFn   func(ctx context.Context) error
}

func (m *HealthCheckerMock) Name() string { return m.NameValue }
func (m *HealthCheckerMock) Check(ctx context.Context) error {
	if m.CheckFn != nil {
		return m.CheckFn(ctx)
	}
	return nil
}
