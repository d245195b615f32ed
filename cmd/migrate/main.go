package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"taskboard/internal/platform/authz"
	"taskboard/internal/platform/config"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/repositories"
)

func main() {
	var configPath string

	open := func() (*sqlx.DB, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return database.Open(cfg.Database)
	}

	withDB := func(fn func(db *sqlx.DB, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(db, args)
		}
	}

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the taskboard database schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withDB(func(db *sqlx.DB, _ []string) error {
				if err := database.Migrate(db); err != nil {
					return err
				}
				fmt.Println("Migrations applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: withDB(func(db *sqlx.DB, _ []string) error {
				if err := database.Rollback(db); err != nil {
					return err
				}
				fmt.Println("Rolled back one migration")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: withDB(func(db *sqlx.DB, _ []string) error {
				return database.MigrationStatus(db)
			}),
		},
		&cobra.Command{
			Use:   "promote <email> <role>",
			Short: "Set the platform role of a user (user, admin or super_admin)",
			Args:  cobra.ExactArgs(2),
			RunE: withDB(func(db *sqlx.DB, args []string) error {
				return promote(db, args[0], args[1])
			}),
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func promote(db *sqlx.DB, email, role string) error {
	if !authz.ValidPlatformRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}

	ctx := context.Background()
	users := repositories.NewUserRepository(db)
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no user with email %s", email)
	}

	if err := users.UpdateRole(ctx, db, user.ID, role, time.Now().Unix()); err != nil {
		return err
	}
	fmt.Printf("%s is now %s\n", user.Email, role)
	return nil
}
