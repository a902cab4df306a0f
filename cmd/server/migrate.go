package main

import (
	"code_duel/internal/platform/database"
	"code_duel/internal/platform/logger"

	"github.com/spf13/cobra"
)

// migrateCmd applies the embedded schema and exits.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostgreSQL tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.Connect(); err != nil {
			return err
		}
		defer database.Close()
		if err := database.Migrate(cmd.Context(), database.DB); err != nil {
			return err
		}
		logger.L().Info("schema_applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
