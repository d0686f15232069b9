// ABOUTME: Tests for abandoned merges on platforms with named pipes
// ABOUTME: A FIFO input keeps pdfcpu blocked past the deadline

//go:build linux || darwin

package merge

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFCPUMerger_AbandonedMergeLeavesOutputAlone(t *testing.T) {
	dir := t.TempDir()
	slow := filepath.Join(dir, "42_1_slow.pdf")
	require.NoError(t, syscall.Mkfifo(slow, 0o600))
	output := filepath.Join(dir, "merged_42_s1.pdf")

	m := NewPDFCPUMerger()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := m.Merge(ctx, []string{slow}, output)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Something else now owns the output path.
	require.NoError(t, os.WriteFile(output, []byte("next session output"), 0o600))

	// Unblock pdfcpu with bytes it cannot parse.
	w, err := os.OpenFile(slow, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, _ = w.Write([]byte("not a pdf"))
	require.NoError(t, w.Close())

	require.Eventually(t, func() bool {
		parts, _ := filepath.Glob(filepath.Join(dir, "*.part*"))
		return len(parts) == 0
	}, 5*time.Second, 10*time.Millisecond, "abandoned merge must remove its temp file")

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "next session output", string(got))
}
