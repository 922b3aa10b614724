// Package command contains the CLI command constructors.
package command

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/kkyr/fig"
	"github.com/spf13/cobra"

	"github.com/fleetbeam/fleetbeam/internal/config"
	"github.com/fleetbeam/fleetbeam/internal/observability"
)

// RootCommand instantiates the root command, with all sub-commands bound.
func RootCommand() *cobra.Command {
	configFilePath := filepath.Join(xdg.ConfigHome, "fleetbeam.yaml")
	cmd := &cobra.Command{
		Use:          "fleetbeam [command] [flags]",
		Short:        "The fleet authentication and location relay service",
		Version:      version(),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := loadOrInitConfig(configFilePath)
			if err != nil {
				return fmt.Errorf("failed to load configuration file: %w", err)
			}
			logger := observability.InitSlog(cfg)
			logger.DebugContext(cmd.Context(), "configuration loaded",
				slog.String("address", cfg.Address),
				slog.String("db", cfg.DBFilepath),
			)
			slog.SetDefault(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(
		&configFilePath,
		"config", "c",
		configFilePath,
		"path to the configuration file",
	)

	cmd.AddCommand(
		serveCommand(),
		userCommand(),
	)

	return cmd
}

func loadOrInitConfig(configFilePath string) (*config.Config, error) {
	cfg, err := config.Load(configFilePath)
	if err == nil || !errors.Is(err, fig.ErrFileNotFound) {
		return cfg, err
	}

	resp, initErr := prompt(fmt.Sprintf("Config not found at %s. Create one? [y|N] ", configFilePath), false)
	if initErr != nil || !bytes.Equal(resp, []byte("y")) {
		return nil, errors.Join(err, initErr)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	data := fmt.Sprintf(
		"# fleetbeam configuration\njwt_secret: %q\n# address: %q\n# db_filepath: %q\n",
		hex.EncodeToString(secret),
		"localhost:9980",
		config.DefaultDBPath(),
	)
	if err := os.WriteFile(configFilePath, []byte(data), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write config file to %s: %w", configFilePath, err)
	}
	return config.Load(configFilePath)
}
