package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "teamtasks",
		Short:         "Team task service: HTTP API, reminder worker and maintenance commands",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("db-driver", "", "database driver, postgres or sqlite (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(migrateWorkspacesCmd())
	rootCmd.AddCommand(setupAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
