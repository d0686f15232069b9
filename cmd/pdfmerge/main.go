// ABOUTME: Entry point for pdfmerge, the PDF merging chat bot
// ABOUTME: Builds the cobra command tree and exits non-zero on error

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version is set by goreleaser at build time.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
