// ABOUTME: Tests for command parsing and event construction
// ABOUTME: Covers aliases, bot-name suffixes and non-command text

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		kind EventKind
		ok   bool
	}{
		{"/merge", EventStart, true},
		{"/mer", EventStart, true},
		{"/start", EventStart, true},
		{"/start-merge", EventStart, true},
		{"/start_merge", EventStart, true},
		{"/MERGE", EventStart, true},
		{"/merge@PdfMergeBot", EventStart, true},
		{"  /done  ", EventFinish, true},
		{"/finish now please", EventFinish, true},
		{"/finish@bot extra", EventFinish, true},
		{"!done", EventFinish, true},
		{"/cancel", EventCancel, true},
		{"/abort", EventCancel, true},
		{"/help", EventUnknown, false},
		{"merge", EventUnknown, false},
		{"/", EventUnknown, false},
		{"", EventUnknown, false},
		{"hello /merge", EventUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			kind, ok := ParseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestTextEvent(t *testing.T) {
	ev := TextEvent("telegram", "42", "100", "/done")
	assert.Equal(t, EventFinish, ev.Kind)
	assert.Equal(t, "telegram", ev.Frontend)
	assert.Equal(t, "42", ev.UserID)
	assert.Equal(t, "100", ev.ChatID)
	assert.False(t, ev.ReceivedAt.IsZero())

	ev = TextEvent("telegram", "42", "100", "just chatting")
	assert.Equal(t, EventText, ev.Kind)
}

func TestConversationUser(t *testing.T) {
	assert.Equal(t, "42", ConversationUser("42", "42"))
	assert.Equal(t, "42", ConversationUser("42", ""))
	assert.Equal(t, "42|-100", ConversationUser("42", "-100"))
	assert.NotEqual(t, ConversationUser("@a:hs", "!r1:hs"), ConversationUser("@a:hs", "!r2:hs"))
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("a.pdf"))
	assert.True(t, IsPDF("A.PDF"))
	assert.True(t, IsPDF("scan.final.Pdf"))
	assert.False(t, IsPDF("a.txt"))
	assert.False(t, IsPDF("pdf"))
	assert.False(t, IsPDF("a.pdf.exe"))
	assert.False(t, IsPDF(""))
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "start", EventStart.String())
	assert.Equal(t, "attachment", EventAttachment.String())
	assert.Equal(t, "finish", EventFinish.String())
	assert.Equal(t, "cancel", EventCancel.String())
	assert.Equal(t, "text", EventText.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}
