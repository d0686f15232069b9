// ABOUTME: Package matrix is the Matrix frontend for the PDF merge bot
// ABOUTME: Syncs rooms with mautrix and implements the engine transport

// Package matrix lets users in Matrix rooms collect and merge PDFs.
package matrix
