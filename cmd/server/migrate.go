package main

import (
	"github.com/spf13/cobra"

	"teamtasks/backend/internal/database"
	"teamtasks/backend/internal/services"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, pool, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(pool.DB); err != nil {
				return err
			}
			log.Info().Msg("schema up to date")
			return nil
		},
	}
}

func migrateWorkspacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-workspaces",
		Short: "Give every user without a workspace one, and move their projects and tasks into it",
		Long: `Backfill workspaces for accounts created before workspaces existed.

Each user without a workspace gets "<name>'s Workspace"; the user's projects
and tasks that have no workspace are moved into it. Safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, pool, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(pool.DB); err != nil {
				return err
			}
			ctx := log.WithContext(cmd.Context())
			migrated, err := services.NewRegisterService(pool.DB, cfg.Auth.BCryptCost).BackfillWorkspaces(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("users", migrated).Msg("workspace backfill finished")
			return nil
		},
	}
}
