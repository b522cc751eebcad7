package utils

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
)

// tokenAlphabet is the URL-safe base64 alphabet. Its size (64) divides 256, so masking a
// random byte with 63 selects each character with equal probability.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// RandomTokenGenerator produces verification tokens from a cryptographically secure source.
type RandomTokenGenerator struct {
	reader io.Reader
}

// NewRandomTokenGenerator returns a generator reading from crypto/rand.
func NewRandomTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{reader: rand.Reader}
}

// NewRandomTokenGeneratorFromReader is used by tests to inject an entropy source.
func NewRandomTokenGeneratorFromReader(r io.Reader) *RandomTokenGenerator {
	return &RandomTokenGenerator{reader: r}
}

// Generate returns a token of exactly length characters.
func (g *RandomTokenGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", verification.ConfigErrorf("token length must be positive, got %d", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(g.reader, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[b&63]
	}
	return string(buf), nil
}
