package main

import (
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/ledger/internal/database"
	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every ledger entry and all import history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return withCode(exitUsage, fmt.Errorf("reset deletes all ledger data; pass --yes to confirm"))
			}
			return runReset(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the reset")
	return cmd
}

func runReset(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer pool.Close()

	if err := database.New(pool).Reset(ctx); err != nil {
		return withCode(exitDB, err)
	}
	fmt.Fprintln(out, "ledger and import history cleared")
	return nil
}
