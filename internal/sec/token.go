package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failure taxonomy for access tokens. All three are terminal for
// the request or handshake carrying the token.
const (
	// ErrTokenMalformed is returned when a token cannot be parsed.
	ErrTokenMalformed Error = "token malformed"
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired Error = "token expired"
	// ErrTokenSignature is returned when a token's signature does not verify.
	ErrTokenSignature Error = "token signature invalid"
)

// Error is an error type returned by token verification.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Claims is the subset of token claims the rest of the system consumes.
type Claims struct {
	// Subject is the username the token was issued to. It may be empty if
	// the token was minted without one.
	Subject string
}

// TokenIssuer mints and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer with the given signing secret and token
// lifetime.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a signed token for the given subject.
func (ti *TokenIssuer) Issue(subject string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
	})
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims. Failures map to
// the [Error] taxonomy; anything unrecognized reads as [ErrTokenMalformed].
func (ti *TokenIssuer) Verify(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrTokenSignature
	case err != nil:
		return Claims{}, ErrTokenMalformed
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return Claims{}, ErrTokenMalformed
	}
	return Claims{Subject: claims.Subject}, nil
}
