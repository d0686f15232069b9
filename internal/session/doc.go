// Package session holds per-user conversation sessions in memory.
//
// A user with no entry in the Store is idle. Store.CreateFresh starts a
// Collecting session and Store.Remove ends it; neither touches files on disk,
// which is the job of the ledger package. Work for a single user is
// serialised with Store.Lock:
//
//	unlock := store.Lock(userID)
//	defer unlock()
//	sess, ok := store.Get(userID)
package session
