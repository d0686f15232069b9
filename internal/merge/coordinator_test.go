// ABOUTME: Tests for the merge coordinator
// ABOUTME: Verifies upload-order merging, error truncation, output tracking and delivery failures

package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lelobhai2456/Pdf-merger/internal/ledger"
	"github.com/lelobhai2456/Pdf-merger/internal/session"
	"github.com/lelobhai2456/Pdf-merger/internal/store"
)

// fakeMerger records its inputs and writes a stub output file
type fakeMerger struct {
	mu     sync.Mutex
	inputs []string
	output string
	err    error
	block  bool
}

func (m *fakeMerger) Merge(ctx context.Context, inputs []string, output string) error {
	m.mu.Lock()
	m.inputs = append([]string(nil), inputs...)
	m.output = output
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(output, []byte("%PDF-merged"), 0o600)
}

type sentDocument struct {
	chatID, path, caption string
}

// fakeReplier records outbound messages
type fakeReplier struct {
	mu      sync.Mutex
	texts   []string
	docs    []sentDocument
	docErr  error
	textErr error
}

func (r *fakeReplier) SendText(ctx context.Context, chatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return r.textErr
}

func (r *fakeReplier) SendDocument(ctx context.Context, chatID, path, caption string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, sentDocument{chatID: chatID, path: path, caption: caption})
	return r.docErr
}

func newSession(t *testing.T, dir string, names ...string) *session.Session {
	t.Helper()
	sess := session.NewStore(session.MaxAttachments).CreateFresh("42", "chat-42")
	for i, n := range names {
		p := session.InputPath(dir, "42", i+1, n)
		require.NoError(t, os.WriteFile(p, []byte("%PDF"), 0o600))
		require.NoError(t, sess.Append(session.Attachment{LocalPath: p, OriginalName: n}))
	}
	return sess
}

func TestCoordinator_MergesInUploadOrderAndDelivers(t *testing.T) {
	dir := t.TempDir()
	merger := &fakeMerger{}
	replier := &fakeReplier{}
	l := ledger.New(nil, nil)
	c := NewCoordinator(merger, l, replier, Config{TempDir: dir, Timeout: time.Second}, nil)

	sess := newSession(t, dir, "zeta.pdf", "alpha.pdf", "mid.pdf")
	res := c.MergeAndDeliver(context.Background(), sess)

	require.NoError(t, res.Err)
	assert.Equal(t, store.OutcomeMerged, res.Kind)
	assert.Equal(t, 3, res.Merged)
	assert.Equal(t, sess.Paths(), merger.inputs, "merge order must be upload order")
	assert.Equal(t, filepath.Join(dir, "merged_42_"+sess.ID+".pdf"), merger.output)

	require.Len(t, replier.docs, 1)
	assert.Equal(t, "chat-42", replier.docs[0].chatID)
	assert.Equal(t, merger.output, replier.docs[0].path)
	assert.Contains(t, replier.docs[0].caption, "(3 files)")

	assert.Contains(t, l.Tracked(sess.ID), merger.output, "output must be ledger-tracked")
}

func TestCoordinator_EmptySessionSkipsMerge(t *testing.T) {
	dir := t.TempDir()
	merger := &fakeMerger{}
	replier := &fakeReplier{}
	c := NewCoordinator(merger, ledger.New(nil, nil), replier, Config{TempDir: dir}, nil)

	res := c.MergeAndDeliver(context.Background(), newSession(t, dir))
	assert.Equal(t, store.OutcomeEmpty, res.Kind)
	assert.ErrorIs(t, res.Err, ErrNoInputs)
	assert.Nil(t, merger.inputs)
	require.Len(t, replier.texts, 1)
	assert.Contains(t, replier.texts[0], "No PDFs received")
}

func TestCoordinator_MergeErrorIsTruncated(t *testing.T) {
	dir := t.TempDir()
	merger := &fakeMerger{err: errors.New(strings.Repeat("x", 500))}
	replier := &fakeReplier{}
	l := ledger.New(nil, nil)
	c := NewCoordinator(merger, l, replier, Config{TempDir: dir}, nil)

	sess := newSession(t, dir, "a.pdf")
	res := c.MergeAndDeliver(context.Background(), sess)

	assert.Equal(t, store.OutcomeMergeFailed, res.Kind)
	assert.Error(t, res.Err)
	assert.Empty(t, replier.docs, "no delivery after a failed merge")

	last := replier.texts[len(replier.texts)-1]
	assert.True(t, strings.HasPrefix(last, "Error during merge"))
	body := strings.TrimPrefix(last, "Error during merge 😢\n")
	assert.Equal(t, strings.Repeat("x", maxErrorLen)+"...", body)

	assert.Contains(t, l.Tracked(sess.ID), session.OutputPath(dir, "42", sess.ID), "partial output is still tracked")
}

func TestCoordinator_MergeTimeout(t *testing.T) {
	dir := t.TempDir()
	merger := &fakeMerger{block: true}
	replier := &fakeReplier{}
	c := NewCoordinator(merger, ledger.New(nil, nil), replier, Config{TempDir: dir, Timeout: 20 * time.Millisecond}, nil)

	res := c.MergeAndDeliver(context.Background(), newSession(t, dir, "a.pdf"))
	assert.Equal(t, store.OutcomeMergeFailed, res.Kind)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestCoordinator_DeliveryFailure(t *testing.T) {
	dir := t.TempDir()
	replier := &fakeReplier{docErr: errors.New("file too big")}
	c := NewCoordinator(&fakeMerger{}, ledger.New(nil, nil), replier, Config{TempDir: dir}, nil)

	res := c.MergeAndDeliver(context.Background(), newSession(t, dir, "a.pdf", "b.pdf"))
	assert.Equal(t, store.OutcomeDeliveryFailed, res.Kind)
	assert.Equal(t, 2, res.Merged)

	last := replier.texts[len(replier.texts)-1]
	assert.Contains(t, last, "file too big")
}

func TestCoordinator_ReplyFailureDoesNotPropagate(t *testing.T) {
	dir := t.TempDir()
	replier := &fakeReplier{textErr: errors.New("chat not found")}
	c := NewCoordinator(&fakeMerger{}, ledger.New(nil, nil), replier, Config{TempDir: dir}, nil)

	res := c.MergeAndDeliver(context.Background(), newSession(t, dir, "a.pdf"))
	assert.Equal(t, store.OutcomeMerged, res.Kind)
	assert.NoError(t, res.Err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "héllo...", Truncate("héllo wörld", 5))
}

func TestCoordinator_OutputIsPerSession(t *testing.T) {
	dir := t.TempDir()
	merger := &fakeMerger{}
	c := NewCoordinator(merger, ledger.New(nil, nil), &fakeReplier{}, Config{TempDir: dir}, nil)

	first := newSession(t, dir, "a.pdf")
	c.MergeAndDeliver(context.Background(), first)
	firstOutput := merger.output

	second := newSession(t, dir, "b.pdf")
	c.MergeAndDeliver(context.Background(), second)

	assert.NotEqual(t, firstOutput, merger.output, "sessions of one user must not share an output")
	assert.FileExists(t, firstOutput)
	assert.FileExists(t, merger.output)
}
