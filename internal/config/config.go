// Package config handles resolving configuration.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/kkyr/fig"
)

// Config is the resolved service configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, or error.
	LogLevel string `fig:"log_level" default:"info"`
	// Address is the host:port the HTTP and websocket server binds to.
	Address string `fig:"address" default:"localhost:9980"`
	// DBFilepath is the path of the SQLite database file. Defaults to
	// $XDG_DATA_HOME/fleetbeam/db.sqlite.
	DBFilepath string `fig:"db_filepath"`
	// JWTSecret signs and verifies access tokens. It must be set.
	JWTSecret string `fig:"jwt_secret" validate:"required"`
	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration `fig:"token_ttl" default:"30m"`
	// AdminUsername and AdminPassword are the bootstrap credentials for the
	// initial admin account, applied only when the user table is empty.
	AdminUsername string `fig:"admin_username" default:"admin"`
	AdminPassword string `fig:"admin_password" default:"admin123"`
	// DevMode relaxes the middleware stack and enables request logging.
	DevMode bool `fig:"dev_mode"`
}

// Default returns a version of the config with all default values populated.
// Note that this configuration is _not_ valid, as the user must set
// jwt_secret.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		Address:       "localhost:9980",
		DBFilepath:    DefaultDBPath(),
		TokenTTL:      30 * time.Minute,
		AdminUsername: "admin",
		AdminPassword: "admin123",
	}
}

// DefaultDBPath is the database location used when db_filepath is unset.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "fleetbeam", "db.sqlite")
}

// Load loads a YAML configuration file from a path, merges it with defaults,
// and validates it for completeness.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	err := fig.Load(cfg,
		fig.File(filepath.Base(path)),
		fig.Dirs(filepath.Dir(path)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file at %s: %w", path, err)
	}
	if cfg.DBFilepath == "" {
		cfg.DBFilepath = DefaultDBPath()
	}
	return cfg, nil
}
