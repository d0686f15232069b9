// ABOUTME: Package engine implements the per-user PDF merge conversation
// ABOUTME: It turns normalised chat events into session transitions and replies

// Package engine is the ConversationEngine.
//
// A user is Idle until a start command opens a Collecting session. PDF
// attachments are downloaded into the temp directory and appended in arrival
// order. A finish command merges them and delivers the result; cancel, a
// fresh start, or the end of a merge attempt purges every file the session
// produced and returns the user to Idle.
//
// Frontends (Telegram, Matrix) build Events and hand them to a Dispatcher,
// which preserves per-user order while letting different users proceed in
// parallel.
package engine
