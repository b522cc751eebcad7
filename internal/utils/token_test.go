package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
)

func TestGenerate_ExactLength(t *testing.T) {
	g := NewRandomTokenGenerator()
	for _, l := range []int{1, 8, 48, 128} {
		tok, err := g.Generate(l)
		require.NoError(t, err)
		assert.Len(t, tok, l)
		for _, c := range tok {
			assert.True(t, strings.ContainsRune(tokenAlphabet, c), "unexpected character %q", c)
		}
	}
}

func TestGenerate_RejectsNonPositiveLength(t *testing.T) {
	g := NewRandomTokenGenerator()
	for _, l := range []int{0, -1} {
		_, err := g.Generate(l)
		require.Error(t, err)
		assert.True(t, errors.Is(err, verification.ErrConfiguration))
	}
}

func TestGenerate_NoCollisionsAndEvenSpread(t *testing.T) {
	g := NewRandomTokenGenerator()
	const samples = 10000
	const length = 48

	seen := make(map[string]struct{}, samples)
	counts := make(map[rune]int, len(tokenAlphabet))
	for i := 0; i < samples; i++ {
		tok, err := g.Generate(length)
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "token collision after %d samples", i)
		seen[tok] = struct{}{}
		for _, c := range tok {
			counts[c]++
		}
	}

	assert.Len(t, counts, len(tokenAlphabet))
	expected := float64(samples*length) / float64(len(tokenAlphabet))
	for c, n := range counts {
		ratio := float64(n) / expected
		assert.InDelta(t, 1.0, ratio, 0.1, "character %q skewed: %d occurrences", c, n)
	}
}

func TestGenerate_ReaderFailure(t *testing.T) {
	g := NewRandomTokenGeneratorFromReader(bytes.NewReader([]byte{1, 2}))
	_, err := g.Generate(8)
	require.Error(t, err)
}

func TestGenerate_MapsBytesUniformly(t *testing.T) {
	g := NewRandomTokenGeneratorFromReader(bytes.NewReader([]byte{0, 63, 64, 255}))
	tok, err := g.Generate(4)
	require.NoError(t, err)
	assert.Equal(t, "A_A_", tok)
}
