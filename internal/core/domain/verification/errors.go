package verification

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks missing or invalid options. It is fatal to the call.
	ErrConfiguration = errors.New("configuration error")
	// ErrNoTempModelConfigured is returned when no staging destination is configured.
	ErrNoTempModelConfigured = fmt.Errorf("%w: no staging store configured", ErrConfiguration)

	ErrInvalidCandidate = errors.New("invalid candidate")
	// ErrConflict means the identity is already staged or already permanent.
	ErrConflict = errors.New("identity already staged or registered")
	// ErrTokenCollision means another staged record already holds the token.
	ErrTokenCollision = errors.New("verification token already in use")
	ErrNotFound       = errors.New("staged record not found")
)

// ConfigErrorf builds an error wrapping ErrConfiguration.
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// PersistenceError wraps a storage collaborator failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DeliveryError wraps a Notifier failure.
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver email to %s: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
