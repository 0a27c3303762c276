package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/ledger/internal/config"
	"github.com/JonMunkholm/ledger/internal/core"
	"github.com/JonMunkholm/ledger/internal/database"
	"github.com/spf13/cobra"
)

type importOptions struct {
	dryRun     bool
	initSchema bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import .xlsx or .csv ledger sheets, each all-or-nothing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.dryRun {
				return runValidate(cmd.Context(), cmd.OutOrStdout(), args)
			}
			return runImport(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate the files without connecting to the database")
	cmd.Flags().BoolVar(&opts.initSchema, "init-schema", false, "Create the ledger tables before importing")

	return cmd
}

func runImport(ctx context.Context, out io.Writer, opts importOptions, files []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer pool.Close()

	if opts.initSchema {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return withCode(exitDB, err)
		}
	}

	service := core.NewService(database.New(pool), cfg)

	var firstErr error
	for _, path := range files {
		receipt, err := importOne(ctx, service, path)
		if err != nil {
			reportError(out, path, err)
			printDiagnostics(out, err)
			if firstErr == nil {
				firstErr = classify(path, err)
			}
			continue
		}
		fmt.Fprintf(out, "%s: imported %d of %d rows (skipped %d) [%s]\n",
			path, receipt.Inserted, receipt.TotalRows, receipt.Skipped, receipt.ImportID)
	}
	return firstErr
}

func importOne(ctx context.Context, service *core.Service, path string) (core.ImportReceipt, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.ImportReceipt{}, withCode(exitUsage, err)
	}
	defer f.Close()

	return service.ImportFile(ctx, filepath.Base(path), f)
}

func runValidate(ctx context.Context, out io.Writer, files []string) error {
	service := core.NewService(nil, dryRunConfig())

	var firstErr error
	for _, path := range files {
		report, err := validateOne(ctx, service, path)
		switch {
		case err != nil:
			reportError(out, path, err)
			if firstErr == nil {
				firstErr = classify(path, err)
			}
		case report.Valid():
			fmt.Fprintf(out, "%s: %d rows valid\n", path, report.TotalRows)
		default:
			fmt.Fprintf(out, "%s: %d of %d rows have problems\n", path, countRows(report.Errors), report.TotalRows)
			for _, re := range report.Errors {
				fmt.Fprintf(out, "  %s\n", re.Error())
			}
			if firstErr == nil {
				firstErr = withCode(exitValidation, fmt.Errorf("%s: %w", path, core.ErrValidation))
			}
		}
	}
	return firstErr
}

func validateOne(ctx context.Context, service *core.Service, path string) (core.ValidationReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.ValidationReport{}, withCode(exitUsage, err)
	}
	defer f.Close()

	return service.ValidateFile(ctx, filepath.Base(path), f)
}

// dryRunConfig allows both sheet formats with no size limit and needs no
// database settings.
func dryRunConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{AllowedExtensions: []string{"xlsx", "csv"}},
	}
}

func classify(path string, err error) error {
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	err = fmt.Errorf("%s: %w", path, err)
	switch {
	case core.IsRejection(err):
		return withCode(exitValidation, err)
	case errors.Is(err, core.ErrStorage):
		return withCode(exitDB, err)
	default:
		slog.Debug("import error", "file", path, "error", err)
		return withCode(exitFailure, err)
	}
}

// reportError prints the user message for err. Errors without a support
// code also print their technical cause.
func reportError(out io.Writer, path string, err error) {
	fmt.Fprintf(out, "%s: %s\n", path, core.FormatUserError(err))
	if !core.IsUserFacing(err) {
		fmt.Fprintf(out, "  cause: %v\n", err)
	}
}

func printDiagnostics(out io.Writer, err error) {
	var ie *core.ImportError
	if !errors.As(err, &ie) {
		return
	}
	for _, d := range ie.Diagnostics {
		fmt.Fprintf(out, "  %s\n", d)
	}
}

func countRows(errs []core.RowError) int {
	seen := make(map[int]struct{}, len(errs))
	for _, e := range errs {
		seen[e.Row] = struct{}{}
	}
	return len(seen)
}
