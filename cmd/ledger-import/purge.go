package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newPurgeCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete import history older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("older-than-days") && days <= 0 {
				return withCode(exitUsage, fmt.Errorf("--older-than-days must be positive, got %d", days))
			}
			return runPurge(cmd.Context(), cmd.OutOrStdout(), days)
		},
	}

	cmd.Flags().IntVar(&days, "older-than-days", 0, "Retention in days (default: HISTORY_RETENTION_DAYS)")
	return cmd
}

func runPurge(ctx context.Context, out io.Writer, days int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if days <= 0 {
		days = cfg.History.RetentionDays
	}
	if days <= 0 {
		return withCode(exitUsage, fmt.Errorf("retention is not configured"))
	}

	service, closeDB, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := service.PurgeHistory(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return withCode(exitDB, err)
	}
	fmt.Fprintf(out, "purged %d import history entries older than %d days\n", n, days)
	return nil
}
