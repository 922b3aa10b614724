// Package storage provides the state management for user accounts.
package storage

import (
	"context"

	"github.com/fleetbeam/fleetbeam/internal/storage/db"
)

const (
	// ErrNotFound is returned when a user cannot be found.
	ErrNotFound Error = "not found"
	// ErrAlreadyExists is returned if a unique user already exists.
	ErrAlreadyExists Error = "already exists"
	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername Error = "username must be 3-64 characters, alphanumeric and underscores only"
	// ErrInternal is returned for any other type of error.
	ErrInternal Error = "internal error"
)

// Error is an error type returned by the storage implementation.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Users are the methods on a storage implementation that are responsible for
// accessing and modifying user accounts.
type Users interface {
	// ListDrivers returns the non-admin users in a list, paginated by the
	// given name (if provided) up to the given limit of records.
	ListDrivers(ctx context.Context, afterName string, limit int32) ([]db.User, error)
	// GetUser returns a single user with the specified ID. An [ErrNotFound] is
	// returned if the user ID does not exist.
	GetUser(ctx context.Context, userID uint64) (db.User, error)
	// GetUserByName returns a single user with the specified name. An
	// [ErrNotFound] is returned if the user name does not exist.
	GetUserByName(ctx context.Context, name string) (db.User, error)
	// UpsertUser creates or updates the user. This is a full PUT-style upsert.
	// An [ErrAlreadyExists] error is returned if the username is already in use.
	UpsertUser(ctx context.Context, user db.User) error
	// DeleteUser removes a user. Note that this is a hard delete; data is not
	// recoverable.
	DeleteUser(ctx context.Context, userID uint64) error
	// EnsureAdmin creates the initial admin account iff the user table is
	// empty. It reports whether the account was created.
	EnsureAdmin(ctx context.Context, name string, passwordHash []byte) (bool, error)
}

// Store is the [Users] directory combined with lifecycle management.
type Store interface {
	Users
	// Close releases any resources held by the store. An error is returned if
	// the store cannot be cleanly closed.
	Close() error
}
