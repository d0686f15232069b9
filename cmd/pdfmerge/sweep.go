// ABOUTME: sweep subcommand: deletes temp files left behind by a previous process
// ABOUTME: Only safe while no server is running against the same database

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lelobhai2456/Pdf-merger/internal/ledger"
	"github.com/lelobhai2456/Pdf-merger/internal/store"
)

func newSweepCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete temp files recorded by a previous (crashed) process",
		Long:  "sweep deletes every temp file recorded in the database. Stop the server first: files of live sessions are recorded there too.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())

			db, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			return runSweep(cmd.Context(), ledger.New(db, logger), cmd.OutOrStdout(), logger)
		},
	}
}

func runSweep(ctx context.Context, files *ledger.Ledger, out io.Writer, logger *slog.Logger) error {
	report, err := files.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "removed %d, already gone %d, failed %d\n", report.Removed, report.Missing, len(report.Failures))
	if report.Err() != nil {
		logger.Warn("some files could not be removed", "error", report.Err())
		return fmt.Errorf("sweep incomplete: %d files could not be removed", len(report.Failures))
	}
	return nil
}
