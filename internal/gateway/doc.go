// Package gateway serves the bot's HTTP surface.
//
// # Endpoints
//
//   - POST /{bot token} - Telegram webhook (see package telegram)
//   - GET /health - Liveness check, always 200 "OK"
//   - GET /health/ready - 200 once the webhook is registered, 503 before
//   - GET /api/sessions - Live sessions across all frontends
//   - GET /api/outcomes?user_id=&limit= - Recent terminal outcomes
//
// The /api endpoints require "Authorization: Bearer <jwt>" when
// auth.jwt_secret is configured.
//
// # Listeners
//
// By default the server listens on server.http_addr. With tailscale.enabled
// it joins the tailnet through tsnet instead; with tailscale.funnel the
// listener is public HTTPS on :443 and PublicURL reports the node's URL so
// the webhook can be registered without a reverse proxy.
//
// # Lifecycle
//
//	gw, err := gateway.New(opts)
//	ln, err := gw.Listen(ctx)
//	// register webhook, then
//	gw.SetReady(true)
//	err = gw.Run(ctx, ln) // blocks until ctx is cancelled
package gateway
