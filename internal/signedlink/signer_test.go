package signedlink

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_IssueAndValidate(t *testing.T) {
	s := NewSigner("test-secret")

	t.Run("round trip", func(t *testing.T) {
		token, err := s.Issue("01J5XBASE0000000000000DOC1", 15*time.Minute)
		require.NoError(t, err)

		id, err := s.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "01J5XBASE0000000000000DOC1", id)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		_, err := s.Issue("", time.Minute)
		assert.Error(t, err)
	})

	t.Run("zero ttl is expired at issuance time", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := at
		fixed := NewSigner("test-secret").WithClock(func() time.Time { return clock })

		token, err := fixed.Issue("doc-1", 0)
		require.NoError(t, err)

		// Validation at exactly T and at any later time must both reject.
		_, err = fixed.Validate(token)
		assert.ErrorIs(t, err, ErrExpired)

		clock = at.Add(time.Hour)
		_, err = fixed.Validate(token)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("expired token", func(t *testing.T) {
		clock := time.Now()
		fixed := NewSigner("test-secret").WithClock(func() time.Time { return clock })

		token, err := fixed.Issue("doc-1", time.Minute)
		require.NoError(t, err)

		clock = clock.Add(2 * time.Minute)
		_, err = fixed.Validate(token)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("tampered id fails signature check", func(t *testing.T) {
		token, err := s.Issue("doc-1", time.Minute)
		require.NoError(t, err)

		tampered := strings.Replace(token, "doc-1", "doc-2", 1)
		_, err = s.Validate(tampered)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("tampered expiry fails signature check", func(t *testing.T) {
		token, err := s.Issue("doc-1", time.Minute)
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + ".9999999999." + parts[2]
		_, err = s.Validate(tampered)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := s.Issue("doc-1", time.Minute)
		require.NoError(t, err)

		other := NewSigner("other-secret")
		_, err = other.Validate(token)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("garbage tokens", func(t *testing.T) {
		for _, token := range []string{"", "abc", "a.b", "a.b.c.d", "..."} {
			_, err := s.Validate(token)
			assert.ErrorIs(t, err, ErrInvalid, "token %q", token)
		}
	})
}
