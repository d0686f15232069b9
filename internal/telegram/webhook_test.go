// ABOUTME: Tests for the Telegram webhook handler and update conversion
// ABOUTME: Covers status codes, dedupe of retried updates and event mapping

package telegram

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lelobhai2456/Pdf-merger/internal/dedupe"
	"github.com/lelobhai2456/Pdf-merger/internal/engine"
)

type eventSink struct {
	mu     sync.Mutex
	events []engine.Event
	err    error
}

func (s *eventSink) dispatch(ev engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *eventSink) all() []engine.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.Event(nil), s.events...)
}

const textUpdate = `{"update_id":1001,"message":{"message_id":5,"date":0,
	"from":{"id":42,"is_bot":false,"first_name":"Asha"},
	"chat":{"id":42,"type":"private"},"text":"/merge@pdfmergebot"}}`

const documentUpdate = `{"update_id":1002,"message":{"message_id":6,"date":0,
	"from":{"id":42,"is_bot":false,"first_name":"Asha"},
	"chat":{"id":42,"type":"private"},
	"document":{"file_id":"BQAC","file_unique_id":"u1","file_name":"report.pdf","mime_type":"application/pdf","file_size":2048}}}`

func post(h http.Handler, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/"+testToken, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_DispatchesUpdate(t *testing.T) {
	sink := &eventSink{}
	h := NewWebhookHandler(sink.dispatch, nil, nil)

	rec := post(h, "application/json", textUpdate)

	assert.Equal(t, http.StatusOK, rec.Code)
	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventStart, events[0].Kind)
	assert.Equal(t, "42", events[0].UserID)
	assert.Equal(t, "Asha", events[0].DisplayName)
}

func TestWebhook_AcceptsCharsetParameter(t *testing.T) {
	sink := &eventSink{}
	h := NewWebhookHandler(sink.dispatch, nil, nil)

	rec := post(h, "application/json; charset=utf-8", textUpdate)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sink.all(), 1)
}

func TestWebhook_StatusCodes(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{"get is not allowed", http.MethodGet, "application/json", textUpdate, http.StatusMethodNotAllowed},
		{"put is not allowed", http.MethodPut, "application/json", textUpdate, http.StatusMethodNotAllowed},
		{"form body is forbidden", http.MethodPost, "application/x-www-form-urlencoded", "a=b", http.StatusForbidden},
		{"missing content type is forbidden", http.MethodPost, "", textUpdate, http.StatusForbidden},
		{"malformed json", http.MethodPost, "application/json", `{"update_id":`, http.StatusBadRequest},
		{"oversized body", http.MethodPost, "application/json", `{"x":"` + strings.Repeat("a", MaxUpdateBytes) + `"}`, http.StatusRequestEntityTooLarge},
		{"unknown update kind", http.MethodPost, "application/json", `{"update_id":9}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &eventSink{}
			h := NewWebhookHandler(sink.dispatch, nil, nil)

			req := httptest.NewRequest(tt.method, "/"+testToken, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, sink.all())
		})
	}
}

func TestWebhook_DropsRetriedUpdates(t *testing.T) {
	sink := &eventSink{}
	seen := dedupe.New(time.Minute, 100)
	defer seen.Close()
	h := NewWebhookHandler(sink.dispatch, seen, nil)

	assert.Equal(t, http.StatusOK, post(h, "application/json", documentUpdate).Code)
	assert.Equal(t, http.StatusOK, post(h, "application/json", documentUpdate).Code)
	assert.Equal(t, http.StatusOK, post(h, "application/json", textUpdate).Code)

	assert.Len(t, sink.all(), 2)
}

func TestWebhook_DispatchFailureStillAcknowledges(t *testing.T) {
	sink := &eventSink{err: errors.New("mailbox full")}
	h := NewWebhookHandler(sink.dispatch, nil, nil)

	assert.Equal(t, http.StatusOK, post(h, "application/json", textUpdate).Code)
}

func TestEventFromUpdate_Document(t *testing.T) {
	upd := tgbotapi.Update{
		UpdateID: 3,
		Message: &tgbotapi.Message{
			MessageID: 11,
			From:      &tgbotapi.User{ID: 7, UserName: "asha"},
			Chat:      &tgbotapi.Chat{ID: -100},
			Document:  &tgbotapi.Document{FileID: "F1", FileName: "Scan.PDF", MimeType: "application/pdf", FileSize: 900},
		},
	}

	ev, ok := EventFromUpdate(upd)
	require.True(t, ok)
	assert.Equal(t, engine.EventAttachment, ev.Kind)
	assert.Equal(t, Frontend, ev.Frontend)
	assert.Equal(t, "7|-100", ev.UserID)
	assert.Equal(t, "-100", ev.ChatID)
	assert.Equal(t, "11", ev.MessageID)
	assert.Equal(t, "asha", ev.DisplayName)
	require.NotNil(t, ev.Attachment)
	assert.Equal(t, "F1", ev.Attachment.FileID)
	assert.Equal(t, "Scan.PDF", ev.Attachment.FileName)
	assert.Equal(t, int64(900), ev.Attachment.Size)
}

func TestEventFromUpdate_Text(t *testing.T) {
	base := func(text string) tgbotapi.Update {
		return tgbotapi.Update{Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: 7, FirstName: "Asha"},
			Chat: &tgbotapi.Chat{ID: 7},
			Text: text,
		}}
	}

	ev, ok := EventFromUpdate(base("/done"))
	require.True(t, ok)
	assert.Equal(t, engine.EventFinish, ev.Kind)

	ev, ok = EventFromUpdate(base("/cancel@pdfmergebot"))
	require.True(t, ok)
	assert.Equal(t, engine.EventCancel, ev.Kind)

	ev, ok = EventFromUpdate(base("thanks!"))
	require.True(t, ok)
	assert.Equal(t, engine.EventText, ev.Kind)
}

func TestEventFromUpdate_Ignored(t *testing.T) {
	_, ok := EventFromUpdate(tgbotapi.Update{})
	assert.False(t, ok, "no message")

	_, ok = EventFromUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "/merge"}})
	assert.False(t, ok, "no sender")

	_, ok = EventFromUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1},
		Chat: &tgbotapi.Chat{ID: 1},
	}})
	assert.False(t, ok, "sticker or other content")
}
