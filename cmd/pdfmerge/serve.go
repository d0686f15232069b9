// ABOUTME: serve subcommand: wires storage, engines, frontends and the gateway
// ABOUTME: Runs until SIGINT/SIGTERM, then shuts down gracefully

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lelobhai2456/Pdf-merger/internal/config"
	"github.com/lelobhai2456/Pdf-merger/internal/dedupe"
	"github.com/lelobhai2456/Pdf-merger/internal/engine"
	"github.com/lelobhai2456/Pdf-merger/internal/gateway"
	"github.com/lelobhai2456/Pdf-merger/internal/ledger"
	"github.com/lelobhai2456/Pdf-merger/internal/matrix"
	"github.com/lelobhai2456/Pdf-merger/internal/merge"
	"github.com/lelobhai2456/Pdf-merger/internal/session"
	"github.com/lelobhai2456/Pdf-merger/internal/store"
	"github.com/lelobhai2456/Pdf-merger/internal/telegram"
)

const banner = `
               _  __
  _ __   __| |/ _|_ __ ___   ___ _ __ __ _  ___
 | '_ \ / _' | |_| '_ ' _ \ / _ \ '__/ _' |/ _ \
 | |_) | (_| |  _| | | | | |  __/ | | (_| |  __/
 | .__/ \__,_|_| |_| |_| |_|\___|_|  \__, |\___|
 |_|                                 |___/
`

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Register the webhook and serve until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			printBanner(cmd.OutOrStdout(), cfg, path)
			logger := setupLogger(cfg.Logging, cmd.OutOrStdout())
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func printBanner(w io.Writer, cfg *config.Config, path string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", version)

	if path == "" {
		path = "(defaults + environment)"
	}
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Config:    %s\n", path)
	if cfg.Tailscale.Enabled {
		green.Fprint(w, "    ▶ ")
		fmt.Fprint(w, "Tailscale: ")
		cyan.Fprint(w, cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Fprint(w, " [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Fprint(w, " (ephemeral)")
		}
		fmt.Fprintln(w)
	} else {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Temp dir:  %s\n", cfg.Storage.TempDir)
	if cfg.Matrix.Enabled {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Matrix:    %s\n", cfg.Matrix.UserID)
	}
	fmt.Fprintln(w)
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.Storage.TempDir, 0o755); err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}

	db, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	files := ledger.New(db, logger)
	logger.Info("file ledger ready", "owner", files.Owner(), "temp_dir", cfg.Storage.TempDir)
	if report, err := files.Sweep(ctx); err != nil {
		logger.Warn("startup sweep failed", "error", err)
	} else if report.Err() != nil {
		logger.Warn("startup sweep left files behind", "error", report.Err())
	}

	seen := dedupe.New(dedupe.DefaultTTL, dedupe.DefaultMaxSize)
	defer seen.Close()

	merger := merge.NewPDFCPUMerger()

	tg, err := telegram.NewClient(telegram.ClientConfig{
		Token:            cfg.Bot.Token,
		MaxDownloadBytes: cfg.Limits.MaxAttachmentBytes,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}

	tgEngine, err := newEngine(cfg, telegram.Frontend, tg, files, merger, db, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	tgDispatch := engine.NewDispatcher(gctx, tgEngine, cfg.Engine.MailboxSize, logger)
	defer tgDispatch.Close()

	sources := []gateway.SessionSource{tgEngine}
	backlogs := []gateway.Backlog{tgDispatch}

	if cfg.Matrix.Enabled {
		bridge, err := matrix.NewBridge(matrix.Config{
			Homeserver:       cfg.Matrix.Homeserver,
			UserID:           cfg.Matrix.UserID,
			AccessToken:      cfg.Matrix.AccessToken,
			AllowedRooms:     cfg.Matrix.AllowedRooms,
			MaxDownloadBytes: cfg.Limits.MaxAttachmentBytes,
		}, seen, logger)
		if err != nil {
			return err
		}
		mxEngine, err := newEngine(cfg, matrix.Frontend, bridge, files, merger, db, logger)
		if err != nil {
			return err
		}
		mxDispatch := engine.NewDispatcher(gctx, mxEngine, cfg.Engine.MailboxSize, logger)
		defer mxDispatch.Close()

		sources = append(sources, mxEngine)
		backlogs = append(backlogs, mxDispatch)
		g.Go(func() error {
			return bridge.Run(gctx, mxDispatch.Dispatch)
		})
	}

	gw, err := gateway.New(gateway.Options{
		Config:   cfg,
		Webhook:  telegram.NewWebhookHandler(tgDispatch.Dispatch, seen, logger),
		Sessions: sources,
		Backlogs: backlogs,
		Outcomes: db,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	ln, err := gw.Listen(gctx)
	if err != nil {
		return err
	}

	webhookURL := cfg.WebhookURL(gw.PublicURL())
	if err := tg.SetWebhook(gctx, webhookURL, cfg.Bot.DropPendingUpdates); err != nil {
		_ = ln.Close()
		_ = gw.Shutdown(context.Background())
		return fmt.Errorf("registering webhook: %w", err)
	}
	gw.SetReady(true)

	logger.Info("pdfmerge ready",
		"bot", tg.Username(),
		"listen", ln.Addr().String(),
		"matrix", cfg.Matrix.Enabled,
	)

	g.Go(func() error {
		return gw.Run(gctx, ln)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("pdfmerge stopped")
	return nil
}

// newEngine builds the conversation engine for one frontend. Each frontend
// has its own session store; files and outcomes are shared.
func newEngine(cfg *config.Config, frontend string, transport engine.Transport, files *ledger.Ledger, merger merge.Merger, outcomes engine.OutcomeRecorder, logger *slog.Logger) (*engine.Engine, error) {
	e, err := engine.New(engine.Options{
		Config: engine.Config{
			Frontend:               frontend,
			TempDir:                cfg.Storage.TempDir,
			MaxAttachmentBytes:     cfg.Limits.MaxAttachmentBytes,
			MaxSessionBytes:        cfg.Limits.MaxSessionBytes,
			DownloadTimeout:        cfg.Limits.DownloadTimeout,
			MergeTimeout:           cfg.Limits.MergeTimeout,
			MaxConcurrentDownloads: cfg.Limits.MaxConcurrentDownloads,
		},
		Sessions:  session.NewStore(cfg.Limits.MaxAttachments),
		Ledger:    files,
		Transport: transport,
		Merger:    merger,
		Outcomes:  outcomes,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s engine: %w", frontend, err)
	}
	return e, nil
}
