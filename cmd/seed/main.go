package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"todoapp/internal/auth"
	"todoapp/internal/config"
	"todoapp/internal/db"
	"todoapp/internal/errors"
	"todoapp/internal/logger"
	"todoapp/internal/model"
	"todoapp/internal/repository"
	"todoapp/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load data into the configured storage backend",
		Long: `Load data into the storage backend selected by STORAGE_BACKEND.

Examples:
  seed import --users data/users.json --tasks data/tasks.json
  seed admin --username root --password s3cret!`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore loads the configuration and opens the backend it names.
func openStore(ctx context.Context) (repository.Store, zerolog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	log := logger.New(cfg.Env)

	rdb, err := db.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, log, nil, err
	}
	store, err := repository.Open(cfg.Storage, rdb)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, log, nil, err
	}

	cleanup := func() {
		_ = store.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
	}
	log.Info().Str("backend", cfg.Storage.Backend).Msg("storage opened")
	return store, log, cleanup, nil
}

func importCmd() *cobra.Command {
	var (
		usersPath string
		tasksPath string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import users.json and tasks.json documents of the file deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, log, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			users, err := os.Open(usersPath)
			if err != nil {
				return fmt.Errorf("open users document: %w", err)
			}
			defer users.Close()

			var tasks io.Reader
			if tasksPath != "" {
				f, err := os.Open(tasksPath)
				if err != nil {
					return fmt.Errorf("open tasks document: %w", err)
				}
				defer f.Close()
				tasks = f
			}

			res, err := service.ImportLegacy(ctx, store, users, tasks, dryRun, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d users (%d skipped), %d tasks (%d skipped)\n",
				res.Users, res.SkippedUsers, res.Tasks, res.SkippedTasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&usersPath, "users", "", "path to users.json")
	cmd.Flags().StringVar(&tasksPath, "tasks", "", "path to tasks.json")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be imported without writing")
	_ = cmd.MarkFlagRequired("users")

	return cmd
}

func adminCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Create an admin account without the signup key",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, log, cleanup, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if len(password) < 6 {
				return errors.ErrWeakAdminPassword
			}
			if len(password) > 72 {
				return errors.Validation("Password must be at most 72 bytes")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			if err := store.Admins().Create(cmd.Context(), &model.User{Username: username, PasswordHash: hash}); err != nil {
				return err
			}

			log.Info().Str("username", username).Msg("admin created")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "admin password (at least 6 characters)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
