package sec

import (
	"context"
	"errors"

	"github.com/fleetbeam/fleetbeam/internal/storage"
	"github.com/fleetbeam/fleetbeam/internal/storage/db"
)

// Authentication rejection reasons. The message strings are part of the wire
// contract: they are emitted verbatim to clients on failed handshakes and
// unauthorized requests. The three tiers are kept distinct to aid client-side
// error messaging and debugging.
const (
	// ErrInvalidCredentials is returned when the token does not verify.
	ErrInvalidCredentials Error = "Invalid credentials"
	// ErrInvalidToken is returned when a verified token carries no subject.
	ErrInvalidToken Error = "Invalid token"
	// ErrUserNotFound is returned when the token subject has no user record.
	ErrUserNotFound Error = "User not found"
)

// TokenVerifier validates an access token, returning its claims.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Authenticate resolves a bearer token to its stored user record. Any
// verification failure collapses to [ErrInvalidCredentials]; a verified token
// without a subject returns [ErrInvalidToken]; a subject absent from the
// directory returns [ErrUserNotFound].
func Authenticate(
	ctx context.Context,
	verifier TokenVerifier,
	users storage.Users,
	token string,
) (db.User, error) {
	claims, err := verifier.Verify(token)
	if err != nil {
		return db.User{}, ErrInvalidCredentials
	}
	if claims.Subject == "" {
		return db.User{}, ErrInvalidToken
	}
	user, err := users.GetUserByName(ctx, claims.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		return db.User{}, ErrUserNotFound
	}
	return user, err
}
