package auth

import (
	"testing"
	"time"

	apperrors "loyalty/internal/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(now *time.Time) *TokenService {
	s := NewTokenService("test-secret", time.Minute)
	s.now = func() time.Time { return *now }
	return s
}

func TestResolve_PlainCustomerID(t *testing.T) {
	now := time.Now()
	s := newTestTokens(&now)

	c, err := s.Resolve(" cust-42 ", "m1")
	require.NoError(t, err)
	assert.Equal(t, "cust-42", c.ID)
	assert.False(t, c.Signed())

	_, err = s.Resolve("", "m1")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestResolve_SignedToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestTokens(&now)

	token, claims, err := s.Issue("m1", "cust-42")
	require.NoError(t, err)

	c, err := s.Resolve(token, "m1")
	require.NoError(t, err)
	assert.Equal(t, "cust-42", c.ID)
	assert.Equal(t, claims.ID, c.Jti)
	assert.True(t, c.Signed())
	require.NotNil(t, c.ExpiresAt)
	assert.True(t, c.ExpiresAt.Equal(now.Add(time.Minute)))
}

func TestResolve_Errors(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestTokens(&now)
	token, _, err := s.Issue("m1", "cust-42")
	require.NoError(t, err)

	_, err = s.Resolve(token, "m2")
	assert.True(t, errors.Is(err, apperrors.ErrTokenAudience))

	later := now.Add(2 * time.Minute)
	expired := newTestTokens(&later)
	_, err = expired.Resolve(token, "m1")
	assert.True(t, errors.Is(err, apperrors.ErrTokenExpired))

	other := NewTokenService("another-secret", time.Minute)
	other.now = func() time.Time { return now }
	_, err = other.Resolve(token, "m1")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "cust-42",
		Audience: jwt.ClaimStrings{"m1"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = s.Resolve(noExp, "m1")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))

	_, err = s.Resolve("a.b.c", "m1")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}
