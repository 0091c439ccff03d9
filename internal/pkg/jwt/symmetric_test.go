package jwt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type fixedID string

func (f fixedID) Generate() string { return string(f) }

var secret = []byte(strings.Repeat("s", 64))

func newSymmetric(t *testing.T, ttl time.Duration) *Symmetric {
	t.Helper()
	s, err := NewHS512(Config{
		Secret:    secret,
		Issuer:    "gomailer",
		Audiences: []string{"gomailer-api"},
		TTL:       ttl,
		Clock:     realClock{},
		UUID:      fixedID("tok-1"),
	})
	require.NoError(t, err)
	return s
}

func TestSymmetric_GenerateVerify(t *testing.T) {
	// Arrange
	s := newSymmetric(t, time.Hour)

	// Act
	token, err := s.Generate("billing-service", "sender", "queue-writer")
	require.NoError(t, err)
	claims, err := s.Verify(token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "billing-service", claims.Subject)
	assert.Equal(t, "tok-1", claims.ID)
	assert.Equal(t, []string{"billing-service", "sender", "queue-writer"}, claims.Principals())
}

func TestSymmetric_Errors(t *testing.T) {
	_, err := NewHS512(Config{Secret: []byte("short")})
	assert.ErrorIs(t, err, ErrSigningKeyTooShort)

	s := newSymmetric(t, time.Hour)
	_, err = s.Generate("")
	assert.ErrorIs(t, err, ErrSubjectRequired)

	token, err := s.Generate("billing-service")
	require.NoError(t, err)
	_, err = s.Verify(token[:len(token)-2] + "xx")
	assert.Error(t, err)

	expired, err := newSymmetric(t, -time.Minute).Generate("billing-service")
	require.NoError(t, err)
	_, err = s.Verify(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAuthContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetAuth(ctx))

	ctx = SetAuth(ctx, Claims{Roles: []string{"admin"}})
	require.NotNil(t, GetAuth(ctx))
	assert.Equal(t, []string{"admin"}, GetAuth(ctx).Principals())
}

func TestSymmetric_RolesAndAudience(t *testing.T) {
	// Arrange
	s := newSymmetric(t, 0)
	other, err := NewHS512(Config{
		Secret:    secret,
		Issuer:    "gomailer",
		Audiences: []string{"another-api"},
		Clock:     realClock{},
		UUID:      fixedID("tok-2"),
	})
	require.NoError(t, err)

	// Act
	token, err := s.Generate("ops", "admin", "", "admin", "auditor")
	require.NoError(t, err)
	claims, verifyErr := s.Verify(token)
	_, foreignErr := other.Verify(token)

	// Assert
	require.NoError(t, verifyErr)
	assert.Equal(t, []string{"admin", "auditor"}, claims.Roles)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
	assert.ErrorIs(t, foreignErr, ErrInvalidToken)
}
