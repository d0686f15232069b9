// ABOUTME: Package telegram is the Telegram Bot API frontend
// ABOUTME: Webhook intake, update decoding and the outbound Transport

// Package telegram connects the conversation engine to the Telegram Bot API.
//
// Updates arrive on a webhook, are acknowledged immediately and converted to
// engine Events; Client implements engine.Transport for replies, document
// delivery and attachment downloads.
package telegram
