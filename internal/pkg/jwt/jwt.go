package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSigningMethod = errors.New("jwt: unexpected signing method")
	ErrSigningKeyTooShort   = errors.New("jwt: HS512 secret must be at least 64 bytes")
	ErrTokenExpired         = errors.New("jwt: token has expired")
	ErrInvalidToken         = errors.New("jwt: invalid token")
	ErrSubjectRequired      = errors.New("jwt: client id is required")
)

// JWT issues and checks client tokens.
type JWT interface {
	Generate(clientID string, roles ...string) (string, error)
	Verify(tokenStr string) (Claims, error)
}

type clocker interface {
	Now() time.Time
}

type generator interface {
	Generate() string
}

// Config builds a token signer.
type Config struct {
	Secret    []byte
	Issuer    string
	Audiences []string
	// TTL is the token lifetime; zero means one hour.
	TTL   time.Duration
	Clock clocker
	// UUID fills the jti claim.
	UUID generator
}

// Claims identifies an API client.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// Principals lists the identities a policy may match: the client id first,
// then its roles.
func (c Claims) Principals() []string {
	out := make([]string, 0, len(c.Roles)+1)
	if c.Subject != "" {
		out = append(out, c.Subject)
	}
	for _, r := range c.Roles {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

type claimsKey struct{}

// SetAuth attaches the verified client to ctx.
func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, clm)
}

// GetAuth returns the client attached by SetAuth, or nil.
func GetAuth(ctx context.Context) *Claims {
	if clm, ok := ctx.Value(claimsKey{}).(Claims); ok {
		return &clm
	}
	return nil
}
