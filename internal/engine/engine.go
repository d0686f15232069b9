// ABOUTME: ConversationEngine: the per-user state machine for collecting and merging PDFs
// ABOUTME: Every terminal transition purges the session's files through the ledger

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/lelobhai2456/Pdf-merger/internal/ledger"
	"github.com/lelobhai2456/Pdf-merger/internal/merge"
	"github.com/lelobhai2456/Pdf-merger/internal/session"
	"github.com/lelobhai2456/Pdf-merger/internal/store"
)

// Transport is what the engine needs from a chat platform.
type Transport interface {
	SendText(ctx context.Context, chatID, text string) error
	SendDocument(ctx context.Context, chatID, path, caption string) error
	FetchAttachment(ctx context.Context, ref AttachmentRef, dest string) error
}

// OutcomeRecorder persists terminal transitions for diagnostics.
type OutcomeRecorder interface {
	SaveOutcome(ctx context.Context, o *store.Outcome) error
}

// Config holds engine limits and paths
type Config struct {
	Frontend               string
	TempDir                string
	MaxAttachmentBytes     int64
	MaxSessionBytes        int64
	DownloadTimeout        time.Duration
	MergeTimeout           time.Duration
	MaxConcurrentDownloads int64
}

// Options are the dependencies of an Engine. Outcomes and Logger are optional.
type Options struct {
	Config    Config
	Sessions  *session.Store
	Ledger    *ledger.Ledger
	Transport Transport
	Merger    merge.Merger
	Outcomes  OutcomeRecorder
	Logger    *slog.Logger
}

// Engine consumes chat events and drives each user's session.
type Engine struct {
	cfg         Config
	sessions    *session.Store
	ledger      *ledger.Ledger
	transport   Transport
	coordinator *merge.Coordinator
	outcomes    OutcomeRecorder
	downloads   *semaphore.Weighted
	logger      *slog.Logger
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Sessions == nil {
		return nil, errors.New("sessions store is required")
	}
	if opts.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if opts.Merger == nil {
		return nil, errors.New("merger is required")
	}
	if opts.Config.TempDir == "" {
		return nil, errors.New("temp dir is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := opts.Config
	if cfg.MaxConcurrentDownloads <= 0 {
		cfg.MaxConcurrentDownloads = 8
	}

	return &Engine{
		cfg:       cfg,
		sessions:  opts.Sessions,
		ledger:    opts.Ledger,
		transport: opts.Transport,
		coordinator: merge.NewCoordinator(opts.Merger, opts.Ledger, opts.Transport, merge.Config{
			TempDir: cfg.TempDir,
			Timeout: cfg.MergeTimeout,
		}, logger),
		outcomes:  opts.Outcomes,
		downloads: semaphore.NewWeighted(cfg.MaxConcurrentDownloads),
		logger:    logger.With("component", "engine", "frontend", cfg.Frontend),
	}, nil
}

// Frontend returns the name of the frontend this engine serves.
func (e *Engine) Frontend() string {
	return e.cfg.Frontend
}

// Sessions returns the engine's session store.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// TrackedFiles returns how many temp files are tracked for sessionID.
func (e *Engine) TrackedFiles(sessionID string) int {
	return len(e.ledger.Tracked(sessionID))
}

// Handle processes one event. Events for the same user are serialised;
// events for different users run concurrently.
func (e *Engine) Handle(ctx context.Context, ev Event) {
	if ev.UserID == "" {
		e.logger.Warn("dropping event without user", "kind", ev.Kind.String())
		return
	}

	unlock := e.sessions.Lock(ev.UserID)
	defer unlock()

	sess, ok := e.sessions.Get(ev.UserID)
	state := session.StateIdle
	if ok {
		state = sess.State()
	}

	e.logger.Debug("handling event",
		"user_id", ev.UserID,
		"kind", ev.Kind.String(),
		"state", state.String(),
	)

	switch ev.Kind {
	case EventStart:
		e.start(ctx, ev, sess)
	case EventAttachment:
		if state == session.StateCollecting {
			e.attach(ctx, ev, sess)
		} else {
			e.reply(ctx, ev.ChatID, "Send /merge first, then your PDFs one by one 📄")
		}
	case EventFinish:
		if state == session.StateCollecting {
			e.finish(ctx, sess)
		} else {
			e.reply(ctx, ev.ChatID, "Nothing to merge 🤷‍♂️")
		}
	case EventCancel:
		if ok {
			e.terminate(ctx, sess, store.OutcomeCancelled, "")
			e.reply(ctx, ev.ChatID, "Cancelled & cleaned 🧹")
		} else {
			e.reply(ctx, ev.ChatID, "Nothing to cancel 🤷‍♂️")
		}
	case EventText, EventUnknown:
		e.logger.Debug("ignoring text message", "user_id", ev.UserID)
	}
}

// start begins a fresh collection, discarding any previous one and its files.
func (e *Engine) start(ctx context.Context, ev Event, prev *session.Session) {
	if prev != nil {
		e.terminate(ctx, prev, store.OutcomeRestarted, "")
	}

	sess := e.sessions.CreateFresh(ev.UserID, ev.ChatID)
	e.logger.Info("session started", "user_id", ev.UserID, "session_id", sess.ID)

	name := ev.DisplayName
	if name == "" {
		name = "there"
	}
	e.reply(ctx, ev.ChatID, fmt.Sprintf(
		"Hi %s! 📄\nSend PDF files one by one (max %d)\n\nFinish with:\n• /done → merge\n• /cancel → abort",
		name, sess.Limit(),
	))
}

// attach validates and downloads one attachment into a Collecting session.
func (e *Engine) attach(ctx context.Context, ev Event, sess *session.Session) {
	ref := ev.Attachment
	if ref == nil || !IsPDF(ref.FileName) {
		e.reply(ctx, ev.ChatID, "Please send PDF files only 😅")
		return
	}

	if sess.Full() {
		e.reply(ctx, ev.ChatID, fmt.Sprintf("Max %d files! Use /done or /cancel", sess.Limit()))
		return
	}

	if e.cfg.MaxAttachmentBytes > 0 && ref.Size > e.cfg.MaxAttachmentBytes {
		e.reply(ctx, ev.ChatID, fmt.Sprintf("%s is too large (max %s) 😅", ref.FileName, formatBytes(e.cfg.MaxAttachmentBytes)))
		return
	}
	if e.cfg.MaxSessionBytes > 0 && sess.TotalBytes()+ref.Size > e.cfg.MaxSessionBytes {
		e.reply(ctx, ev.ChatID, fmt.Sprintf("Total size limit of %s reached! Use /done or /cancel", formatBytes(e.cfg.MaxSessionBytes)))
		return
	}

	dest := session.InputPath(e.cfg.TempDir, ev.UserID, sess.Count()+1, ref.FileName)
	e.ledger.Track(ctx, sess.ID, sess.UserID, dest)

	size, err := e.download(ctx, *ref, dest)
	if err != nil {
		e.logger.Error("attachment download failed",
			"user_id", ev.UserID,
			"session_id", sess.ID,
			"file_name", ref.FileName,
			"error", err,
		)
		// The path stays tracked; a retry reuses the same ordinal and path
		_ = os.Remove(dest)
		e.reply(ctx, ev.ChatID, fmt.Sprintf("Could not download %s, please send it again 😢", ref.FileName))
		return
	}

	if e.cfg.MaxSessionBytes > 0 && sess.TotalBytes()+size > e.cfg.MaxSessionBytes {
		_ = os.Remove(dest)
		e.reply(ctx, ev.ChatID, fmt.Sprintf("Total size limit of %s reached! Use /done or /cancel", formatBytes(e.cfg.MaxSessionBytes)))
		return
	}

	if err := sess.Append(session.Attachment{LocalPath: dest, OriginalName: ref.FileName, Size: size}); err != nil {
		_ = os.Remove(dest)
		e.reply(ctx, ev.ChatID, fmt.Sprintf("Max %d files! Use /done or /cancel", sess.Limit()))
		return
	}

	e.reply(ctx, ev.ChatID, fmt.Sprintf("Received %d/%d • %s", sess.Count(), sess.Limit(), ref.FileName))
}

// download fetches ref into dest under the global download bound and the
// per-download timeout, returning the size on disk.
func (e *Engine) download(ctx context.Context, ref AttachmentRef, dest string) (int64, error) {
	if e.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.DownloadTimeout)
		defer cancel()
	}

	if err := e.downloads.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("waiting for download slot: %w", err)
	}
	defer e.downloads.Release(1)

	if err := e.transport.FetchAttachment(ctx, ref, dest); err != nil {
		return 0, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("checking downloaded file: %w", err)
	}
	return info.Size(), nil
}

// finish merges a Collecting session; the session always ends here.
func (e *Engine) finish(ctx context.Context, sess *session.Session) {
	if sess.Count() == 0 {
		e.reply(ctx, sess.ChatID, "No PDFs received! 😕")
		e.terminate(ctx, sess, store.OutcomeEmpty, "")
		return
	}

	sess.SetState(session.StateFinishing)
	res := e.coordinator.MergeAndDeliver(ctx, sess)

	detail := ""
	if res.Err != nil {
		detail = res.Err.Error()
	}
	e.terminate(ctx, sess, res.Kind, detail)
}

// terminate purges the session's files, removes it and records the outcome.
// Cleanup runs on a context detached from cancellation so shutdown cannot
// skip it.
func (e *Engine) terminate(ctx context.Context, sess *session.Session, kind store.OutcomeKind, detail string) {
	cleanupCtx := context.WithoutCancel(ctx)

	report := e.ledger.PurgeAll(cleanupCtx, sess.ID)
	e.sessions.Remove(sess.UserID)

	e.logger.Info("session ended",
		"user_id", sess.UserID,
		"session_id", sess.ID,
		"outcome", string(kind),
		"attachments", sess.Count(),
		"files_removed", report.Removed+report.Missing,
		"cleanup_failures", len(report.Failures),
	)

	if e.outcomes == nil {
		return
	}
	o := &store.Outcome{
		ID:          uuid.New().String(),
		Frontend:    e.cfg.Frontend,
		UserID:      sess.UserID,
		SessionID:   sess.ID,
		Kind:        kind,
		Attachments: sess.Count(),
		Detail:      merge.Truncate(detail, maxDetailLen),
		CreatedAt:   time.Now(),
	}
	if err := e.outcomes.SaveOutcome(cleanupCtx, o); err != nil {
		e.logger.Warn("failed to record outcome", "session_id", sess.ID, "error", err)
	}
}

func (e *Engine) reply(ctx context.Context, chatID, text string) {
	if err := e.transport.SendText(ctx, chatID, text); err != nil {
		e.logger.Warn("failed to send reply", "chat_id", chatID, "error", err)
	}
}


// maxDetailLen caps the error detail stored with an outcome, in runes.
const maxDetailLen = 500

// formatBytes renders n as a short human-readable size.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.0f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
