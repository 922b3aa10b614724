package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kkyr/fig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid config",
			yaml: `jwt_secret: "hunter2"`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "hunter2", cfg.JWTSecret)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, "localhost:9980", cfg.Address)
				assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
				assert.Equal(t, "admin", cfg.AdminUsername)
				assert.Equal(t, DefaultDBPath(), cfg.DBFilepath)
			},
		},
		{
			name: "overrides",
			yaml: "jwt_secret: s3cret\naddress: 0.0.0.0:8000\ntoken_ttl: 1h\ndb_filepath: /tmp/fleet.sqlite\ndev_mode: true",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0:8000", cfg.Address)
				assert.Equal(t, time.Hour, cfg.TokenTTL)
				assert.Equal(t, "/tmp/fleet.sqlite", cfg.DBFilepath)
				assert.True(t, cfg.DevMode)
			},
		},
		{
			name:    "missing jwt_secret fails validation",
			yaml:    `log_level: info`,
			wantErr: "jwt_secret",
		},
		{
			name:    "invalid yaml syntax",
			yaml:    `invalid: [yaml: content`,
			wantErr: "failed to load config file",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			path := writeTestConfig(t, test.yaml)
			cfg, err := Load(path)

			if test.wantErr != "" {
				require.ErrorContains(t, err, test.wantErr)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			test.check(t, cfg)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, fig.ErrFileNotFound)
	assert.Nil(t, cfg)
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)
	return path
}
