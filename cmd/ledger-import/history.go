package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/ledger/internal/config"
	"github.com/JonMunkholm/ledger/internal/core"
	"github.com/JonMunkholm/ledger/internal/database"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent import attempts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), cmd.OutOrStdout(), limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show (max 100)")
	return cmd
}

func runHistory(ctx context.Context, out io.Writer, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	service, closeDB, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	batches, err := service.ListImports(ctx, limit)
	if err != nil {
		return withCode(exitDB, err)
	}
	return printHistory(out, batches)
}

func printHistory(out io.Writer, batches []core.ImportBatch) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tFILE\tSTATUS\tSTAGE\tROWS\tINSERTED\tSKIPPED\tDETAIL")
	for _, b := range batches {
		detail := ""
		if len(b.Diagnostics) > 0 {
			detail = b.Diagnostics[0]
			if n := len(b.Diagnostics) - 1; n > 0 {
				detail += fmt.Sprintf(" (+%d more)", n)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			b.CreatedAt.Local().Format(time.DateTime),
			b.FileName, b.Status, b.Stage,
			b.RowCount, b.Inserted, b.Skipped,
			strings.ReplaceAll(detail, "\t", " "),
		)
	}
	return tw.Flush()
}

// openService connects to the configured database. The returned func
// closes the pool.
func openService(ctx context.Context, cfg *config.Config) (*core.Service, func(), error) {
	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, withCode(exitDB, err)
	}
	return core.NewService(database.New(pool), cfg), pool.Close, nil
}
