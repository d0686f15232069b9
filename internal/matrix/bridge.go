// ABOUTME: Matrix bridge: syncs rooms and turns messages into engine events
// ABOUTME: Commands arrive as m.text, PDFs as m.file; replies are rendered from markdown

package matrix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/lelobhai2456/Pdf-merger/internal/dedupe"
	"github.com/lelobhai2456/Pdf-merger/internal/engine"
)

// Frontend is the frontend name used in events, dedupe keys and outcomes.
const Frontend = "matrix"

// networkTimeout bounds a single send when the caller's context has none.
const networkTimeout = 30 * time.Second

// ErrTooLarge is returned when a download exceeds the configured limit.
var ErrTooLarge = errors.New("file exceeds download limit")

// DispatchFunc queues an event without waiting for it to be handled.
type DispatchFunc func(engine.Event) error

// Config configures the bridge
type Config struct {
	Homeserver       string
	UserID           string
	AccessToken      string
	AllowedRooms     []string
	MaxDownloadBytes int64
}

// api is the subset of *mautrix.Client the bridge uses.
type api interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON interface{}, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
	UploadMedia(ctx context.Context, data mautrix.ReqUploadMedia) (*mautrix.RespMediaUpload, error)
	Download(ctx context.Context, mxcURL id.ContentURI) (*http.Response, error)
}

// Bridge connects Matrix rooms to the conversation engine.
type Bridge struct {
	cfg     Config
	client  *mautrix.Client
	api     api
	self    id.UserID
	seen    *dedupe.Cache
	logger  *slog.Logger
	started time.Time
}

// NewBridge creates a Matrix bridge. seen may be nil to disable dedupe.
func NewBridge(cfg Config, seen *dedupe.Cache, logger *slog.Logger) (*Bridge, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:     cfg,
		client:  client,
		api:     client,
		self:    id.UserID(cfg.UserID),
		seen:    seen,
		logger:  logger.With("component", "matrix"),
		started: time.Now(),
	}, nil
}

// Run syncs with the homeserver, dispatching events until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, dispatch DispatchFunc) error {
	b.logger.Info("starting matrix bridge", "homeserver", b.cfg.Homeserver, "user_id", b.cfg.UserID)

	syncer, ok := b.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		b.handleMessageEvent(evt, dispatch)
	})

	syncCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.client.SyncWithContext(syncCtx)
	}()

	select {
	case <-ctx.Done():
		b.logger.Info("shutting down matrix bridge")
		return nil
	case err := <-syncErr:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

func (b *Bridge) handleMessageEvent(evt *event.Event, dispatch DispatchFunc) {
	ev, ok := b.eventFromMatrix(evt)
	if !ok {
		return
	}
	if b.seen != nil && b.seen.Seen(dedupe.Key(Frontend, evt.ID.String())) {
		b.logger.Debug("dropping duplicate event", "event_id", evt.ID.String())
		return
	}
	if err := dispatch(ev); err != nil {
		b.logger.Warn("failed to dispatch event", "room", ev.ChatID, "user_id", ev.UserID, "error", err)
	}
}

// eventFromMatrix converts a room message to an engine Event. Own messages,
// messages from rooms outside the allow list and history replayed by the
// initial sync are skipped.
func (b *Bridge) eventFromMatrix(evt *event.Event) (engine.Event, bool) {
	if evt.Sender == b.self {
		return engine.Event{}, false
	}
	if time.UnixMilli(evt.Timestamp).Before(b.started) {
		return engine.Event{}, false
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return engine.Event{}, false
	}

	roomID := evt.RoomID.String()
	if !b.isRoomAllowed(roomID) {
		b.logger.Debug("ignoring message from non-allowed room", "room", roomID)
		return engine.Event{}, false
	}

	userID := engine.ConversationUser(evt.Sender.String(), roomID)

	var ev engine.Event
	switch content.MsgType {
	case event.MsgText, event.MsgNotice:
		ev = engine.TextEvent(Frontend, userID, roomID, content.Body)
	case event.MsgFile:
		name := content.FileName
		if name == "" {
			name = content.Body
		}
		ref := &engine.AttachmentRef{FileID: string(content.URL), FileName: name}
		if content.Info != nil {
			ref.MimeType = content.Info.MimeType
			ref.Size = int64(content.Info.Size)
		}
		ev = engine.Event{
			Kind:       engine.EventAttachment,
			Frontend:   Frontend,
			UserID:     userID,
			ChatID:     roomID,
			Attachment: ref,
			ReceivedAt: time.Now(),
		}
	default:
		return engine.Event{}, false
	}

	ev.MessageID = evt.ID.String()
	ev.DisplayName = evt.Sender.Localpart()
	return ev, true
}

// isRoomAllowed checks if the room is in the allowed list.
func (b *Bridge) isRoomAllowed(roomID string) bool {
	if len(b.cfg.AllowedRooms) == 0 {
		return true
	}
	return slices.Contains(b.cfg.AllowedRooms, roomID)
}

// SendText sends text rendered from markdown, with the plain text as body.
func (b *Bridge) SendText(ctx context.Context, chatID, text string) error {
	ctx, cancel := withNetworkTimeout(ctx)
	defer cancel()

	content := &event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    text,
	}
	if html, err := renderMarkdown(text); err == nil {
		content.Format = event.FormatHTML
		content.FormattedBody = html
	} else {
		b.logger.Debug("markdown render failed, sending plain text", "error", err)
	}

	if _, err := b.api.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, content); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// SendDocument uploads the file at path and posts it as an m.file with caption.
func (b *Bridge) SendDocument(ctx context.Context, chatID, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("checking document: %w", err)
	}

	name := filepath.Base(path)
	upload, err := b.api.UploadMedia(ctx, mautrix.ReqUploadMedia{
		Content:       f,
		ContentLength: info.Size(),
		ContentType:   "application/pdf",
		FileName:      name,
	})
	if err != nil {
		return fmt.Errorf("uploading document: %w", err)
	}

	content := &event.MessageEventContent{
		MsgType:  event.MsgFile,
		Body:     caption,
		FileName: name,
		URL:      upload.ContentURI.CUString(),
		Info: &event.FileInfo{
			MimeType: "application/pdf",
			Size:     int(info.Size()),
		},
	}

	ctx, cancel := withNetworkTimeout(ctx)
	defer cancel()
	if _, err := b.api.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, content); err != nil {
		return fmt.Errorf("sending document: %w", err)
	}
	return nil
}

// FetchAttachment downloads the mxc:// content behind ref to dest. On failure
// dest is removed.
func (b *Bridge) FetchAttachment(ctx context.Context, ref engine.AttachmentRef, dest string) error {
	uri, err := id.ContentURIString(ref.FileID).Parse()
	if err != nil {
		return fmt.Errorf("parsing content uri: %w", err)
	}

	resp, err := b.api.Download(ctx, uri)
	if err != nil {
		return fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if err := writeLimited(dest, resp.Body, b.cfg.MaxDownloadBytes); err != nil {
		_ = os.Remove(dest)
		return err
	}
	return nil
}

func writeLimited(dest string, body io.Reader, limit int64) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	src := body
	if limit > 0 {
		src = io.LimitReader(body, limit+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		return fmt.Errorf("writing file: %w", copyErr)
	case closeErr != nil:
		return fmt.Errorf("closing file: %w", closeErr)
	case limit > 0 && n > limit:
		return ErrTooLarge
	}
	return nil
}

func withNetworkTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, networkTimeout)
}

var _ engine.Transport = (*Bridge)(nil)
