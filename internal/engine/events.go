// ABOUTME: Chat event model consumed by the conversation engine
// ABOUTME: Frontends normalise platform updates into Events; commands are parsed here

package engine

import (
	"strings"
	"time"
)

// EventKind is the kind of inbound chat event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventStart
	EventAttachment
	EventFinish
	EventCancel
	EventText
)

// String returns the lowercase name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventAttachment:
		return "attachment"
	case EventFinish:
		return "finish"
	case EventCancel:
		return "cancel"
	case EventText:
		return "text"
	default:
		return "unknown"
	}
}

// AttachmentRef points at a file held by the chat platform.
type AttachmentRef struct {
	FileID   string
	FileName string
	MimeType string
	Size     int64 // 0 when the platform did not report it
}

// Event is a normalised inbound chat event.
type Event struct {
	Kind        EventKind
	Frontend    string
	MessageID   string
	UserID      string
	ChatID      string
	DisplayName string
	Text        string
	Attachment  *AttachmentRef
	ReceivedAt  time.Time
}

// commands maps every accepted command name to its event kind.
var commands = map[string]EventKind{
	"start-merge": EventStart,
	"start_merge": EventStart,
	"merge":       EventStart,
	"mer":         EventStart,
	"start":       EventStart,
	"finish":      EventFinish,
	"done":        EventFinish,
	"cancel":      EventCancel,
	"abort":       EventCancel,
}

// ParseCommand recognises "/name", "/name@botname" and "!name" with optional
// trailing arguments. It returns false for anything that is not a known command.
func ParseCommand(text string) (EventKind, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || (text[0] != '/' && text[0] != '!') {
		return EventUnknown, false
	}

	name := text[1:]
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}

	kind, ok := commands[strings.ToLower(name)]
	return kind, ok
}

// TextEvent builds the Event for a plain text message, classifying commands.
func TextEvent(frontend, userID, chatID, text string) Event {
	kind := EventText
	if k, ok := ParseCommand(text); ok {
		kind = k
	}
	return Event{
		Kind:       kind,
		Frontend:   frontend,
		UserID:     userID,
		ChatID:     chatID,
		Text:       text,
		ReceivedAt: time.Now(),
	}
}

// ConversationUser scopes a sender to one chat so the same person merging in
// two chats gets two sessions. A private chat whose ID is the sender's keeps
// the bare sender ID.
func ConversationUser(senderID, chatID string) string {
	if chatID == "" || chatID == senderID {
		return senderID
	}
	return senderID + "|" + chatID
}

// IsPDF reports whether a file name has a .pdf suffix, ignoring case.
func IsPDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
