package verification

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_LookupDottedPath(t *testing.T) {
	attrs := Attributes{
		"email": "a@b.com",
		"profile": map[string]any{
			"contact": map[string]any{"email": "nested@b.com"},
		},
	}

	v, ok := attrs.LookupString("email")
	require.True(t, ok)
	assert.Equal(t, "a@b.com", v)

	v, ok = attrs.LookupString("profile.contact.email")
	require.True(t, ok)
	assert.Equal(t, "nested@b.com", v)

	_, ok = attrs.Lookup("profile.missing.email")
	assert.False(t, ok)
	_, ok = attrs.Lookup("email.local")
	assert.False(t, ok)
}

func TestAttributes_SetAndDelete(t *testing.T) {
	attrs := Attributes{"password": "x"}
	require.NoError(t, attrs.Set("profile.name", "Ann"))
	v, ok := attrs.LookupString("profile.name")
	require.True(t, ok)
	assert.Equal(t, "Ann", v)

	require.Error(t, attrs.Set("password.hash", "y"))

	attrs.Delete("profile.name")
	_, ok = attrs.Lookup("profile.name")
	assert.False(t, ok)
	attrs.Delete("nope.deeper")
}

func TestAttributes_CloneIsDeep(t *testing.T) {
	orig := Attributes{"profile": map[string]any{"name": "Ann"}, "tags": []any{"a"}}
	cp := orig.Clone()
	require.NoError(t, cp.Set("profile.name", "Bob"))
	cp["tags"].([]any)[0] = "b"

	name, _ := orig.LookupString("profile.name")
	assert.Equal(t, "Ann", name)
	assert.Equal(t, "a", orig["tags"].([]any)[0])
}

func TestAttributes_IdentityKey(t *testing.T) {
	key, err := Attributes{"email": "a@b.com"}.IdentityKey("email")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", key)

	_, err = Attributes{}.IdentityKey("email")
	assert.True(t, errors.Is(err, ErrInvalidCandidate))

	_, err = Attributes{"email": 42}.IdentityKey("email")
	assert.True(t, errors.Is(err, ErrInvalidCandidate))

	_, err = Attributes{"email": "  "}.IdentityKey("email")
	assert.True(t, errors.Is(err, ErrInvalidCandidate))
}

func TestAttributes_ScanValueRoundTrip(t *testing.T) {
	attrs := Attributes{"email": "a@b.com", "profile": map[string]any{"age": float64(3)}}
	v, err := attrs.Value()
	require.NoError(t, err)

	var out Attributes
	require.NoError(t, out.Scan(v))
	assert.Equal(t, "a@b.com", out["email"])
	age, ok := out.Lookup("profile.age")
	require.True(t, ok)
	assert.Equal(t, float64(3), age)

	require.Error(t, out.Scan(12))
}

func TestStagedRecord_ExpiredAt(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &StagedRecord{CreatedAt: created}
	ttl := time.Hour

	assert.False(t, rec.ExpiredAt(created.Add(30*time.Minute), ttl))
	assert.False(t, rec.ExpiredAt(created.Add(time.Hour), ttl))
	assert.True(t, rec.ExpiredAt(created.Add(time.Hour+time.Nanosecond), ttl))
}

func TestStagedRecord_DocumentExposesTokenField(t *testing.T) {
	rec := &StagedRecord{Token: "tok", Attributes: Attributes{"email": "a@b.com"}}
	doc := rec.Document("GENERATED_VERIFYING_URL")
	assert.Equal(t, "tok", doc["GENERATED_VERIFYING_URL"])
	assert.Equal(t, "a@b.com", doc["email"])
	_, leaked := rec.Attributes["GENERATED_VERIFYING_URL"]
	assert.False(t, leaked)
}

func TestOptions_WithMergesOnlySuppliedKeys(t *testing.T) {
	base := DefaultOptions()
	opts, err := base.With(WithURLLength(16), WithIdentityField("profile.email"))
	require.NoError(t, err)

	assert.Equal(t, 16, opts.URLLength)
	assert.Equal(t, "profile.email", opts.IdentityField)
	assert.Equal(t, base.TokenField, opts.TokenField)
	assert.Equal(t, base.Expiration, opts.Expiration)
	assert.Equal(t, 48, base.URLLength)
}

func TestOptions_Validate(t *testing.T) {
	cases := []struct {
		name string
		opt  Option
	}{
		{"missing placeholder", WithVerificationURL("http://example.com/verify")},
		{"zero length", WithURLLength(0)},
		{"negative length", WithURLLength(-3)},
		{"empty identity", WithIdentityField("")},
		{"empty token field", WithTokenField("")},
		{"zero expiration", WithExpiration(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DefaultOptions().With(tc.opt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestOptions_VerificationLink(t *testing.T) {
	opts, err := DefaultOptions().With(WithVerificationURL("https://app.test/verify/${URL}?again=${URL}"))
	require.NoError(t, err)
	assert.Equal(t, "https://app.test/verify/abc?again=abc", opts.VerificationLink("abc"))
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	assert.True(t, errors.Is(&PersistenceError{Op: "insert", Err: cause}, cause))
	assert.True(t, errors.Is(&DeliveryError{To: "a@b.com", Err: cause}, cause))
	assert.True(t, errors.Is(ErrNoTempModelConfigured, ErrConfiguration))
}
