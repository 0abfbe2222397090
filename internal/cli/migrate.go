package cli

import (
	"fmt"

	"github.com/JonMunkholm/tplimport/internal/config"
	"github.com/JonMunkholm/tplimport/internal/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			setupLogging(cmd, cfg)

			// Open migrates when DB_AUTO_MIGRATE is set; force it here.
			cfg.Database.AutoMigrate = true
			pool, err := database.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			pool.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}
