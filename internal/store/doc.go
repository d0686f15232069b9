// Package store provides persistent storage for pdfmerge using SQLite.
//
// Sessions themselves are never persisted: a restart loses every in-progress
// collection. What is persisted is the bookkeeping needed to keep the temp
// directory clean and to answer diagnostics queries:
//
//   - FileRecord: a downloaded or generated temp file, recorded by the ledger
//     when tracked and forgotten once deleted. Records left behind by a
//     previous process are swept at startup.
//   - Outcome: one row per terminal session transition (merged, merge_failed,
//     delivery_failed, empty, cancelled, restarted).
//
// SQLiteStore implements Store on modernc.org/sqlite (pure Go, no cgo):
//
//	s, err := store.NewSQLiteStore("/var/lib/pdfmerge/pdfmerge.db")
//
// MockStore is an in-memory implementation for tests.
package store
