package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math/rand/v2"
	"regexp"

	"github.com/influxdata/influxdb/pkg/snowflake"

	"github.com/fleetbeam/fleetbeam/internal/config"
	"github.com/fleetbeam/fleetbeam/internal/storage/db"
)

// Username validation constraints.
const (
	minUsernameLen = 3
	maxUsernameLen = 64
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// validateUsername validates that a username meets the requirements:
// 3-64 characters, alphanumeric and underscores only.
func validateUsername(name string) bool {
	return len(name) >= minUsernameLen &&
		len(name) <= maxUsernameLen &&
		usernameRegex.MatchString(name)
}

// DB is a [Store] backed by a SQLite database.
type DB struct {
	ids     *snowflake.Generator
	db      *sql.DB
	queries *db.Queries
}

// NewDB initializes a DB with the given config and logger.
func NewDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*DB, error) {
	handle, err := db.Open(ctx, logger, cfg.DBFilepath)
	if err != nil {
		return nil, err
	}
	return &DB{
		ids:     snowflake.New(rand.IntN(1023)), //nolint:gosec,mnd // this isn't for crypto
		db:      handle,
		queries: db.New(handle),
	}, nil
}

// Close satisfies the [Store] interface.
func (d *DB) Close() error {
	return d.db.Close()
}

// ListDrivers satisfies the [Users] interface.
func (d *DB) ListDrivers(ctx context.Context, afterName string, limit int32) ([]db.User, error) {
	return d.queries.GetDrivers(ctx, db.GetDriversParams{
		AfterName:  afterName,
		MaxResults: int64(limit),
	})
}

// GetUser satisfies the [Users] interface.
func (d *DB) GetUser(ctx context.Context, userID uint64) (db.User, error) {
	user, err := d.queries.GetUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, err
}

// GetUserByName satisfies the [Users] interface.
func (d *DB) GetUserByName(ctx context.Context, name string) (db.User, error) {
	user, err := d.queries.GetUserByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, err
}

// UpsertUser satisfies the [Users] interface.
func (d *DB) UpsertUser(ctx context.Context, user db.User) error {
	if !validateUsername(user.Name) {
		return ErrInvalidUsername
	}
	if user.ID == 0 {
		user.ID = d.ids.Next()
	}
	switch _, err := d.queries.UpsertUser(ctx, db.UpsertUserParams(user)); {
	case errors.Is(err, sql.ErrNoRows):
		return ErrAlreadyExists
	default:
		return err
	}
}

// DeleteUser satisfies the [Users] interface.
func (d *DB) DeleteUser(ctx context.Context, userID uint64) error {
	return d.queries.DeleteUser(ctx, userID)
}

// EnsureAdmin satisfies the [Users] interface. The created account keeps the
// configured bootstrap credentials until the password is changed.
func (d *DB) EnsureAdmin(ctx context.Context, name string, passwordHash []byte) (bool, error) {
	count, err := d.queries.CountUsers(ctx)
	if err != nil || count > 0 {
		return false, err
	}
	err = d.UpsertUser(ctx, db.User{
		Name:         name,
		PasswordHash: passwordHash,
		Admin:        true,
	})
	return err == nil, err
}

var _ Store = (*DB)(nil)
