package command

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fleetbeam/fleetbeam/internal/app"
	"github.com/fleetbeam/fleetbeam/internal/observability"
	"github.com/fleetbeam/fleetbeam/internal/relay"
	"github.com/fleetbeam/fleetbeam/internal/sec"
	"github.com/fleetbeam/fleetbeam/internal/server"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the fleet HTTP API and realtime relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			cfg, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			// First-run bootstrap: an empty directory gets the configured
			// admin account so the system is administrable out of the box.
			hash, err := sec.HashPassword([]byte(cfg.AdminPassword))
			if err != nil {
				return err
			}
			created, err := store.EnsureAdmin(cmd.Context(), cfg.AdminUsername, hash)
			if err != nil {
				return err
			}
			if created {
				logger.InfoContext(cmd.Context(), "created initial admin user",
					slog.String("name", cfg.AdminUsername),
				)
			}

			issuer := sec.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
			metrics := observability.NewMetrics()
			rly := relay.New(issuer, store, logger, metrics)
			srv := app.New(cfg, logger, store, issuer, rly, metrics)

			grp, ctx := errgroup.WithContext(cmd.Context())
			listener, err := server.Listen(ctx, cfg.Address)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx,
				"starting server...",
				slog.String("address", cfg.Address),
			)
			server.Serve(ctx, grp, srv.Server, listener, server.ShutdownTimeout)
			return grp.Wait()
		},
	}
}
