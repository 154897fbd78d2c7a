package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"teamtasks/backend/internal/database"
	"teamtasks/backend/internal/services"
)

var (
	adminEmail string
	adminName  string
)

func setupAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup-admin",
		Short: "Create the administrator account, or promote an existing one",
		Long: `Create or promote the administrator account.

The password is read from ADMIN_PASSWORD so it stays out of shell history.

Examples:
  ADMIN_PASSWORD=... teamtasks setup-admin --email admin@example.com
  ADMIN_PASSWORD=... teamtasks setup-admin --email ops@example.com --name Ops`,
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("ADMIN_PASSWORD")
			if password == "" {
				return errors.New("ADMIN_PASSWORD must be set")
			}

			cfg, log, pool, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(pool.DB); err != nil {
				return err
			}
			ctx := log.WithContext(cmd.Context())
			admin, err := services.NewRegisterService(pool.DB, cfg.Auth.BCryptCost).EnsureAdmin(ctx, services.RegistrationRequest{
				Email:    adminEmail,
				Name:     adminName,
				Password: password,
			})
			if err != nil {
				return err
			}
			log.Info().Str("user_id", admin.ID.String()).Str("email", admin.Email).Msg("administrator ready")
			return nil
		},
	}
	cmd.Flags().StringVar(&adminEmail, "email", "admin@example.com", "administrator email")
	cmd.Flags().StringVar(&adminName, "name", "Administrator", "administrator display name")
	return cmd
}
