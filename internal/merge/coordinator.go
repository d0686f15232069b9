// ABOUTME: MergeCoordinator runs the merge for a finished session and delivers the result
// ABOUTME: Never fails upward: every failure becomes one user-visible reply plus a log line

package merge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lelobhai2456/Pdf-merger/internal/session"
	"github.com/lelobhai2456/Pdf-merger/internal/store"
)

// maxErrorLen caps merge error text echoed back to the chat.
const maxErrorLen = 200

// Merger is the PDF merge capability.
type Merger interface {
	Merge(ctx context.Context, inputs []string, output string) error
}

// Tracker registers files for guaranteed cleanup. *ledger.Ledger implements it.
type Tracker interface {
	Track(ctx context.Context, sessionID, userID, path string)
}

// Replier sends results back to the originating chat.
type Replier interface {
	SendText(ctx context.Context, chatID, text string) error
	SendDocument(ctx context.Context, chatID, path, caption string) error
}

// Config holds coordinator settings
type Config struct {
	TempDir string
	Timeout time.Duration
}

// Result describes what MergeAndDeliver did.
type Result struct {
	Kind   store.OutcomeKind
	Merged int
	Output string
	Err    error
}

// Coordinator orchestrates merge and delivery for one session at a time.
type Coordinator struct {
	merger  Merger
	tracker Tracker
	replier Replier
	cfg     Config
	logger  *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(merger Merger, tracker Tracker, replier Replier, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		merger:  merger,
		tracker: tracker,
		replier: replier,
		cfg:     cfg,
		logger:  logger.With("component", "merge"),
	}
}

// MergeAndDeliver merges the session's attachments in upload order and sends
// the document. The output file is tracked before the merge starts so even
// a partial write is cleaned up. Cleanup itself is the caller's job.
func (c *Coordinator) MergeAndDeliver(ctx context.Context, sess *session.Session) Result {
	paths := sess.Paths()
	if len(paths) == 0 {
		c.reply(ctx, sess, "No PDFs received! 😕")
		return Result{Kind: store.OutcomeEmpty, Err: ErrNoInputs}
	}

	output := session.OutputPath(c.cfg.TempDir, sess.UserID, sess.ID)
	c.tracker.Track(ctx, sess.ID, sess.UserID, output)

	c.reply(ctx, sess, fmt.Sprintf("Merging %d files... ⏳", len(paths)))

	mergeCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		mergeCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := c.merger.Merge(mergeCtx, paths, output); err != nil {
		c.logger.Error("merge failed",
			"user_id", sess.UserID,
			"session_id", sess.ID,
			"inputs", len(paths),
			"error", err,
		)
		c.reply(ctx, sess, "Error during merge 😢\n"+Truncate(err.Error(), maxErrorLen))
		return Result{Kind: store.OutcomeMergeFailed, Output: output, Err: err}
	}

	c.logger.Info("merge complete",
		"user_id", sess.UserID,
		"session_id", sess.ID,
		"inputs", len(paths),
		"duration", time.Since(start),
	)

	caption := fmt.Sprintf("Merged PDF ready! (%d files) 🎉", len(paths))
	if err := c.replier.SendDocument(ctx, sess.ChatID, output, caption); err != nil {
		c.logger.Error("delivery failed", "user_id", sess.UserID, "session_id", sess.ID, "error", err)
		c.reply(ctx, sess, "Could not send the merged PDF 😢\n"+Truncate(err.Error(), maxErrorLen))
		return Result{Kind: store.OutcomeDeliveryFailed, Merged: len(paths), Output: output, Err: err}
	}

	return Result{Kind: store.OutcomeMerged, Merged: len(paths), Output: output}
}

func (c *Coordinator) reply(ctx context.Context, sess *session.Session, text string) {
	if err := c.replier.SendText(ctx, sess.ChatID, text); err != nil {
		c.logger.Warn("failed to send reply", "chat_id", sess.ChatID, "error", err)
	}
}

// Truncate shortens a string to the given max rune count, adding "..." if truncated.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
