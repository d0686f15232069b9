// ABOUTME: PDF merge capability backed by pdfcpu
// ABOUTME: Runs the merge off the caller's goroutine so a context deadline bounds it

package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrNoInputs is returned when a merge is requested with no input files.
var ErrNoInputs = errors.New("no input files")

var disableConfigDir sync.Once

// PDFCPUMerger concatenates PDFs with pdfcpu.
type PDFCPUMerger struct{}

// NewPDFCPUMerger creates a merger. pdfcpu's on-disk user config is disabled
// so the service never writes outside its temp directory.
func NewPDFCPUMerger() *PDFCPUMerger {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFCPUMerger{}
}

// Merge writes inputs, in order, into output.
// pdfcpu writes to a private temp file next to output that is renamed into
// place only on success. If ctx ends first, Merge returns ctx.Err() and the
// abandoned merge removes its temp file without ever touching output.
func (m *PDFCPUMerger) Merge(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}

	tmp, err := partPath(output)
	if err != nil {
		return err
	}

	var (
		mu        sync.Mutex
		abandoned bool
	)
	done := make(chan error, 1)
	go func() {
		err := api.MergeCreateFile(inputs, tmp, false, nil)

		mu.Lock()
		defer mu.Unlock()
		if err == nil && !abandoned {
			err = os.Rename(tmp, output)
		}
		if err != nil || abandoned {
			_ = os.Remove(tmp)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("merging %d files: %w", len(inputs), err)
		}
		return nil
	case <-ctx.Done():
		mu.Lock()
		abandoned = true
		mu.Unlock()
		return fmt.Errorf("merging %d files: %w", len(inputs), ctx.Err())
	}
}

// partPath reserves a unique temp file in output's directory, keeping the
// .pdf extension.
func partPath(output string) (string, error) {
	dir, base := filepath.Dir(output), filepath.Base(output)
	ext := filepath.Ext(base)
	f, err := os.CreateTemp(dir, "."+strings.TrimSuffix(base, ext)+".*.part"+ext)
	if err != nil {
		return "", fmt.Errorf("creating merge temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("creating merge temp file: %w", err)
	}
	return name, nil
}
