package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/ledger/internal/config"
	"github.com/JonMunkholm/ledger/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "ledger-import",
		Short:         "Import inventory ledger sheets into PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return withCode(exitUsage, err)
			}
			level := os.Getenv("LOG_LEVEL")
			if opts.verbose {
				level = "debug"
			}
			slog.SetDefault(logging.New(os.Stderr, level, os.Getenv("LOG_FORMAT")))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Env file to load before reading configuration")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	cmd.AddCommand(newImportCmd(), newHistoryCmd(), newPurgeCmd(), newResetCmd())
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("load configuration: %w", err))
	}
	return cfg, nil
}
