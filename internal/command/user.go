package command

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/fleetbeam/fleetbeam/internal/sec"
	"github.com/fleetbeam/fleetbeam/internal/storage/db"
)

func userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User commands",
	}
	cmd.AddCommand(
		userCreateCommand(),
		userDeleteCommand(),
		userSeedCommand(),
	)
	return cmd
}

func userCreateCommand() *cobra.Command {
	var carNumber string
	var admin bool
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create user",
		Long: "Creates a user entry for the provided username and password. Passwords may be\n" +
			"provided via stdin or through the interactive prompt.",

		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			name := args[0]
			user := db.User{Name: name, Admin: admin}
			if carNumber != "" {
				user.CarNumber = sql.NullString{Valid: true, String: carNumber}
			}
			if passwd, err := prompt("password: ", true); err != nil {
				return err
			} else if user.PasswordHash, err = sec.HashPassword(passwd); err != nil {
				return err
			} else if err = store.UpsertUser(cmd.Context(), user); err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "created user",
				slog.String("name", name),
				slog.Bool("admin", admin),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&carNumber, "car-number", "", "car number assigned to the driver")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin privileges")
	return cmd
}

func userDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete user",
		Long: "Permanently deletes the user. " +
			"This operation is permanent and irreversible.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			name := args[0]
			logger = logger.With(slog.String("name", name))
			user, err := store.GetUserByName(cmd.Context(), name)
			if err != nil {
				return err
			}
			resp, err := prompt("Are you sure you want to delete this user? [y|N] ", false)
			if !bytes.Equal(resp, []byte{'y'}) || err != nil {
				logger.InfoContext(cmd.Context(), "aborted user deletion")
				return err
			}
			if err = store.DeleteUser(cmd.Context(), user.ID); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "user deleted")
			return nil
		},
	}
}

func userSeedCommand() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:    "seed COUNT",
		Short:  "Seed fake driver accounts (development helper)",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			count, err := strconv.Atoi(args[0])
			if err != nil || count < 1 {
				return fmt.Errorf("invalid count %q", args[0])
			}
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			hash, err := sec.HashPassword([]byte(password))
			if err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "seeding drivers",
				slog.Int("count", count),
				slog.String("password", password),
			)
			faker := gofakeit.New(0)
			for range count {
				name := fmt.Sprintf("%s_%s", faker.Username(), faker.DigitN(4))
				car := fmt.Sprintf("%s-%s", faker.LetterN(2), faker.DigitN(4))
				err := store.UpsertUser(cmd.Context(), db.User{
					Name:         name,
					CarNumber:    sql.NullString{Valid: true, String: car},
					PasswordHash: hash,
				})
				if err != nil {
					return err
				}
				logger.InfoContext(cmd.Context(), "seeded driver",
					slog.String("name", name),
					slog.String("car", car),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "driver123", "password assigned to every seeded account")
	return cmd
}
