package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/reviewplanner/internal/config"
	"github.com/example/reviewplanner/internal/database"
)

// dbInitCmd creates the schema without starting anything else
var dbInitCmd = &cobra.Command{
	Use:   "db-init",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbInitCmd)
}
