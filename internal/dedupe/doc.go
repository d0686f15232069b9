// ABOUTME: Package dedupe drops repeated deliveries of the same chat update
// ABOUTME: Keys are namespaced per frontend with Key

// Package dedupe provides a bounded TTL cache for recognising update IDs the
// chat platform has already delivered once.
package dedupe
