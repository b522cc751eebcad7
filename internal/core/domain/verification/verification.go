package verification

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attributes is a caller-supplied user document: identity, password and any profile fields.
// Nested objects are represented as nested Attributes or map[string]any values.
type Attributes map[string]any

// Lookup returns the value at a dotted path such as "profile.email".
func (a Attributes) Lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = map[string]any(a)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// LookupString is Lookup restricted to string values.
func (a Attributes) LookupString(path string) (string, bool) {
	v, ok := a.Lookup(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores value at a dotted path, creating intermediate objects as needed.
func (a Attributes) Set(path string, value any) error {
	if path == "" {
		return fmt.Errorf("empty attribute path")
	}
	parts := strings.Split(path, ".")
	cur := map[string]any(a)
	for i, part := range parts[:len(parts)-1] {
		next, exists := cur[part]
		if !exists {
			child := map[string]any{}
			cur[part] = child
			cur = child
			continue
		}
		m, ok := asMap(next)
		if !ok {
			return fmt.Errorf("attribute %q is not an object", strings.Join(parts[:i+1], "."))
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// Delete removes the value at a dotted path. Missing paths are ignored.
func (a Attributes) Delete(path string) {
	parts := strings.Split(path, ".")
	cur := map[string]any(a)
	for _, part := range parts[:len(parts)-1] {
		m, ok := asMap(cur[part])
		if !ok {
			return
		}
		cur = m
	}
	delete(cur, parts[len(parts)-1])
}

// Clone returns a deep copy of the nested objects and slices.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

// Without returns a copy with the given dotted paths removed.
func (a Attributes) Without(paths ...string) Attributes {
	out := a.Clone()
	for _, p := range paths {
		if p != "" {
			out.Delete(p)
		}
	}
	return out
}

// IdentityKey derives the identity used for duplicate detection from the configured field.
func (a Attributes) IdentityKey(field string) (string, error) {
	v, ok := a.Lookup(field)
	if !ok {
		return "", fmt.Errorf("%w: missing identity field %q", ErrInvalidCandidate, field)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: identity field %q must be a non-empty string", ErrInvalidCandidate, field)
	}
	return s, nil
}

// Value implements driver.Valuer so Attributes can be stored in a JSONB column.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for JSONB columns.
func (a *Attributes) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*a = Attributes{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Attributes", src)
	}
	out := Attributes{}
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	*a = out
	return nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Attributes:
		return m, true
	default:
		return nil, false
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Attributes(t).Clone())
	case Attributes:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// StagedRecord is a pending, time-limited signup awaiting confirmation.
type StagedRecord struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	IdentityKey string     `json:"identity_key" db:"identity_key"`
	Token       string     `json:"token" db:"token"`
	Attributes  Attributes `json:"attributes" db:"attributes"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
}

// ExpiredAt reports whether createdAt + ttl lies before now.
func (r *StagedRecord) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return r.CreatedAt.Add(ttl).Before(now)
}

// Document renders the staged record as the caller sees it, with the token
// exposed under tokenField.
func (r *StagedRecord) Document(tokenField string) map[string]any {
	doc := map[string]any(r.Attributes.Clone())
	doc[tokenField] = r.Token
	doc["createdAt"] = r.CreatedAt
	return doc
}

// PermanentUser is the confirmed user promoted out of staging.
type PermanentUser struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	IdentityKey string     `json:"identity_key" db:"identity_key"`
	Attributes  Attributes `json:"attributes" db:"attributes"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// SignupRequest is an arbitrary JSON object submitted to the signup endpoint.
type SignupRequest map[string]any

// VerifyEmailRequest represents the request to confirm a staged signup
type VerifyEmailRequest struct {
	Token string `json:"token" query:"token" validate:"required"`
}

// ResendVerificationRequest represents the request to resend verification email
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required"`
}
