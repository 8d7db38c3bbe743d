package main

import (
	"github.com/sitepass/subscription-whitelist/internal/pkg/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *database.Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "Rolled back %d migration(s)", steps)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *database.Migrator) error {
					changed, err := m.Up()
					if err != nil {
						return err
					}
					if !changed {
						info(cmd.OutOrStdout(), "Schema is up to date")
						return nil
					}
					success(cmd.OutOrStdout(), "Migrations applied")
					return nil
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *database.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					info(cmd.OutOrStdout(), "Schema version %d (dirty: %t)", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(fn func(m *database.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := database.NewMigrator(cfg.DatabaseURL())
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
