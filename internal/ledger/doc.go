// Package ledger keeps the bookkeeping of temp files pending guaranteed
// deletion. Every terminal session transition funnels through PurgeAll;
// failures are logged and reported, never returned as errors.
package ledger
