package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/core/ports"
)

const (
	maxTokenAttempts     = 3
	confirmationMailWait = 30 * time.Second
)

type VerificationService struct {
	opts      verification.Options
	staging   ports.StagingStore
	permanent ports.PermanentUserRepository
	mailer    ports.MailDispatcher
	tokens    ports.TokenGenerator
	hasher    ports.Hasher
	logger    *logrus.Logger
	now       func() time.Time

	pending sync.WaitGroup
}

// VerificationServiceOption configures optional collaborators
type VerificationServiceOption func(*VerificationService)

// WithHasher installs the password processing step run before staging.
func WithHasher(h ports.Hasher) VerificationServiceOption {
	return func(s *VerificationService) { s.hasher = h }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) VerificationServiceOption {
	return func(s *VerificationService) { s.now = now }
}

func NewVerificationService(
	opts verification.Options,
	staging ports.StagingStore,
	permanent ports.PermanentUserRepository,
	mailer ports.MailDispatcher,
	tokens ports.TokenGenerator,
	logger *logrus.Logger,
	svcOpts ...VerificationServiceOption,
) *VerificationService {
	s := &VerificationService{
		opts:      opts,
		staging:   staging,
		permanent: permanent,
		mailer:    mailer,
		tokens:    tokens,
		logger:    logger,
		now:       time.Now,
	}
	for _, o := range svcOpts {
		o(s)
	}
	return s
}

var _ ports.VerificationService = (*VerificationService)(nil)

func (s *VerificationService) Options() verification.Options {
	return s.opts
}

// CreateTempUser stages candidate under a fresh token. A nil record with a nil error means the
// identity is already staged or already a permanent user.
func (s *VerificationService) CreateTempUser(ctx context.Context, candidate verification.Attributes) (*verification.StagedRecord, error) {
	if s.staging == nil {
		return nil, verification.ErrNoTempModelConfigured
	}
	if s.tokens == nil {
		return nil, verification.ConfigErrorf("no token generator configured")
	}

	identity, err := candidate.IdentityKey(s.opts.IdentityField)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &verification.StagedRecord{
		ID:          uuid.New(),
		IdentityKey: identity,
		Attributes:  candidate.Without(s.opts.TokenField),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.opts.Expiration),
	}

	if s.hasher != nil && s.opts.PasswordField != "" {
		if raw, ok := rec.Attributes.Lookup(s.opts.PasswordField); ok {
			password, isString := raw.(string)
			if !isString {
				return nil, fmt.Errorf("%w: %s must be a string", verification.ErrInvalidCandidate, s.opts.PasswordField)
			}
			rec, err = s.hasher.Process(ctx, password, rec)
			if err != nil {
				return nil, fmt.Errorf("failed to process password: %w", err)
			}
		}
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := s.tokens.Generate(s.opts.URLLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		rec.Token = token

		staged, err := s.staging.InsertIfAbsent(ctx, rec)
		switch {
		case err == nil:
			recordEvent(eventStaged)
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{"identity": identity, "token_prefix": tokenPrefix(token), "expires_at": staged.ExpiresAt}).Info("verification: candidate staged")
			}
			return staged, nil
		case errors.Is(err, verification.ErrConflict):
			recordEvent(eventConflict)
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{"identity": identity}).Info("verification: identity already staged or registered")
			}
			return nil, nil
		case errors.Is(err, verification.ErrTokenCollision):
			continue
		default:
			return nil, err
		}
	}
	return nil, &verification.PersistenceError{Op: "insert staged record", Err: verification.ErrTokenCollision}
}

// SendVerificationEmail mails the verification link for token to email.
func (s *VerificationService) SendVerificationEmail(ctx context.Context, email, token string) (*ports.DeliveryInfo, error) {
	if s.mailer == nil {
		return nil, verification.ConfigErrorf("no mail dispatcher configured")
	}
	return s.mailer.Send(ctx, s.opts.VerifyMail, email, s.opts.VerificationLink(token))
}

// SendConfirmationEmail mails the "successfully verified" message.
func (s *VerificationService) SendConfirmationEmail(ctx context.Context, email string) (*ports.DeliveryInfo, error) {
	if s.mailer == nil {
		return nil, verification.ConfigErrorf("no mail dispatcher configured")
	}
	return s.mailer.Send(ctx, s.opts.ConfirmMail, email, "")
}

// ConfirmTempUser promotes the staged record behind token into the permanent store.
//
// Unknown and expired tokens both yield (nil, nil). If the permanent store already holds the
// identity, the promotion is treated as already done: the staged record is deleted and the
// existing permanent user is returned. Any other permanent-store failure leaves the staged
// record in place so the user can retry.
func (s *VerificationService) ConfirmTempUser(ctx context.Context, token string) (*verification.PermanentUser, error) {
	if s.staging == nil {
		return nil, verification.ErrNoTempModelConfigured
	}
	if s.permanent == nil {
		return nil, verification.ConfigErrorf("no permanent store configured")
	}

	rec, err := s.staging.FindByToken(ctx, token)
	if errors.Is(err, verification.ErrNotFound) {
		recordEvent(eventConfirmNotFound)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if rec.ExpiredAt(now, s.opts.Expiration) {
		recordEvent(eventConfirmNotFound)
		return nil, nil
	}

	user := &verification.PermanentUser{
		ID:          uuid.New(),
		IdentityKey: rec.IdentityKey,
		Attributes:  rec.Attributes.Without(s.opts.TokenField),
		CreatedAt:   now,
	}

	err = s.permanent.Create(ctx, user)
	switch {
	case errors.Is(err, verification.ErrConflict):
		existing, getErr := s.permanent.GetByIdentity(ctx, rec.IdentityKey)
		if getErr != nil {
			return nil, &verification.PersistenceError{Op: "get permanent user", Err: getErr}
		}
		recordEvent(eventAlreadyConfirmed)
		s.releaseStaged(ctx, rec)
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"identity": rec.IdentityKey, "user_id": existing.ID}).Info("verification: identity already confirmed")
		}
		return existing, nil
	case err != nil:
		return nil, &verification.PersistenceError{Op: "create permanent user", Err: err}
	}

	recordEvent(eventConfirmed)
	s.releaseStaged(ctx, rec)
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identity": rec.IdentityKey, "user_id": user.ID}).Info("verification: user confirmed")
	}

	if s.opts.SendConfirmationEmail {
		s.sendConfirmationAsync(ctx, rec.IdentityKey)
	}
	return user, nil
}

// releaseStaged deletes the promoted staged record. A failure leaves both records behind;
// a retried confirmation resolves it through the permanent store's uniqueness constraint.
func (s *VerificationService) releaseStaged(ctx context.Context, rec *verification.StagedRecord) {
	if err := s.staging.DeleteByToken(ctx, rec.Token); err != nil && s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identity": rec.IdentityKey}).WithError(err).Warn("verification: failed to delete promoted staged record")
	}
}

func (s *VerificationService) sendConfirmationAsync(ctx context.Context, email string) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmationMailWait)
		defer cancel()
		if _, err := s.SendConfirmationEmail(mailCtx, email); err != nil && s.logger != nil {
			s.logger.WithFields(logrus.Fields{"email": email}).WithError(err).Warn("verification: failed to send confirmation email")
		}
	}()
}

// Wait blocks until every in-flight confirmation email has been handed to the notifier.
func (s *VerificationService) Wait() {
	s.pending.Wait()
}

// ResendVerificationEmail issues a new token for the record staged under email and mails it.
// The previous token stops working. found reports whether a live staged record existed; when
// re-issuing or mailing fails, found is true and the error says which step failed.
func (s *VerificationService) ResendVerificationEmail(ctx context.Context, email string) (bool, error) {
	if s.staging == nil {
		return false, verification.ErrNoTempModelConfigured
	}
	if s.tokens == nil {
		return false, verification.ConfigErrorf("no token generator configured")
	}
	if s.mailer == nil {
		return false, verification.ConfigErrorf("no mail dispatcher configured")
	}

	rec, err := s.staging.FindByIdentity(ctx, email)
	if errors.Is(err, verification.ErrNotFound) {
		recordEvent(eventResendNotFound)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.ExpiredAt(s.now(), s.opts.Expiration) {
		recordEvent(eventResendNotFound)
		return false, nil
	}

	var updated *verification.StagedRecord
	for attempt := 0; attempt < maxTokenAttempts && updated == nil; attempt++ {
		token, err := s.tokens.Generate(s.opts.URLLength)
		if err != nil {
			return true, fmt.Errorf("failed to generate token: %w", err)
		}
		updated, err = s.staging.ReissueToken(ctx, rec, token)
		switch {
		case err == nil:
		case errors.Is(err, verification.ErrTokenCollision):
			updated = nil
		case errors.Is(err, verification.ErrNotFound):
			// confirmed or evicted concurrently
			recordEvent(eventResendNotFound)
			return false, nil
		default:
			return true, err
		}
	}
	if updated == nil {
		return true, &verification.PersistenceError{Op: "reissue token", Err: verification.ErrTokenCollision}
	}

	recordEvent(eventResent)
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identity": rec.IdentityKey, "token_prefix": tokenPrefix(updated.Token)}).Info("verification: token reissued")
	}
	if _, err := s.SendVerificationEmail(ctx, email, updated.Token); err != nil {
		return true, err
	}
	return true, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
