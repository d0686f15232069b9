// ABOUTME: Converts Telegram updates into engine events
// ABOUTME: Documents become attachments; text is classified as a command or plain text

package telegram

import (
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lelobhai2456/Pdf-merger/internal/engine"
)

// Frontend is the frontend name used in events, dedupe keys and outcomes.
const Frontend = "telegram"

// EventFromUpdate converts u to an engine Event. It returns false for
// updates the engine has no use for.
func EventFromUpdate(u tgbotapi.Update) (engine.Event, bool) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return engine.Event{}, false
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	userID := engine.ConversationUser(strconv.FormatInt(msg.From.ID, 10), chatID)

	var ev engine.Event
	switch {
	case msg.Document != nil:
		doc := msg.Document
		ev = engine.Event{
			Kind:     engine.EventAttachment,
			Frontend: Frontend,
			UserID:   userID,
			ChatID:   chatID,
			Attachment: &engine.AttachmentRef{
				FileID:   doc.FileID,
				FileName: doc.FileName,
				MimeType: doc.MimeType,
				Size:     int64(doc.FileSize),
			},
			ReceivedAt: time.Now(),
		}
	case msg.Text != "":
		ev = engine.TextEvent(Frontend, userID, chatID, msg.Text)
	default:
		return engine.Event{}, false
	}

	ev.MessageID = strconv.Itoa(msg.MessageID)
	ev.DisplayName = displayName(msg.From)
	return ev, true
}

func displayName(u *tgbotapi.User) string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.UserName != "":
		return u.UserName
	default:
		return ""
	}
}
