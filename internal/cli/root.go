// Package cli implements the tplimport command line.
package cli

import (
	"log/slog"

	"github.com/JonMunkholm/tplimport/internal/config"
	"github.com/JonMunkholm/tplimport/internal/core"
	"github.com/JonMunkholm/tplimport/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the tplimport command tree.
func NewRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "tplimport",
		Short:         "Import pipeline templates in atomic batches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
				slog.Warn("could not load env file", "path", envFile, "error", err)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

// setupLogging sends log output to the command's stderr so stdout stays
// machine readable.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
}

func serviceConfig(cfg *config.Config) core.ServiceConfig {
	return core.ServiceConfig{
		MaxBatchSize:         cfg.Import.MaxBatchSize,
		ImportTimeout:        cfg.Import.Timeout,
		MaxConcurrentBatches: cfg.Import.MaxConcurrent,
		MaxWaitTime:          cfg.Import.MaxWaitTime,
	}
}
