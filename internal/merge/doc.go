// Package merge turns a finished session into a single delivered PDF.
//
// Coordinator.MergeAndDeliver builds the ordered input list from the session,
// tracks the output path with the ledger, runs the Merger under a timeout and
// sends the result. It never returns an error to the caller; the Result only
// tells the engine which outcome to record. PDFCPUMerger is the production
// Merger.
package merge
