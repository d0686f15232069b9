// ABOUTME: HTTP handler receiving Telegram webhook updates
// ABOUTME: Acknowledges immediately and dispatches events asynchronously, dropping retries

package telegram

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lelobhai2456/Pdf-merger/internal/dedupe"
	"github.com/lelobhai2456/Pdf-merger/internal/engine"
)

// MaxUpdateBytes caps the webhook request body.
const MaxUpdateBytes = 1 << 20

// DispatchFunc queues an event without waiting for it to be handled.
// (*engine.Dispatcher).Dispatch satisfies it.
type DispatchFunc func(engine.Event) error

// WebhookHandler serves the Telegram webhook endpoint.
type WebhookHandler struct {
	dispatch DispatchFunc
	seen     *dedupe.Cache
	logger   *slog.Logger
}

// NewWebhookHandler creates a handler. seen may be nil to disable dedupe.
func NewWebhookHandler(dispatch DispatchFunc, seen *dedupe.Cache, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		dispatch: dispatch,
		seen:     seen,
		logger:   logger.With("component", "telegram-webhook"),
	}
}

// ServeHTTP implements http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		sendJSONError(w, http.StatusForbidden, "content type must be application/json")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUpdateBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendJSONError(w, http.StatusRequestEntityTooLarge, "update too large")
			return
		}
		sendJSONError(w, http.StatusBadRequest, "reading body failed")
		return
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	w.WriteHeader(http.StatusOK)

	if h.seen != nil && h.seen.Seen(dedupe.Key(Frontend, strconv.Itoa(update.UpdateID))) {
		h.logger.Debug("dropping duplicate update", "update_id", update.UpdateID)
		return
	}

	ev, ok := EventFromUpdate(update)
	if !ok {
		h.logger.Debug("ignoring update", "update_id", update.UpdateID)
		return
	}

	if err := h.dispatch(ev); err != nil {
		h.logger.Warn("failed to dispatch update",
			"update_id", update.UpdateID,
			"user_id", ev.UserID,
			"error", err,
		)
	}
}

func sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
