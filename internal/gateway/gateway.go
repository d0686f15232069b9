// ABOUTME: Gateway owns the HTTP server: webhook, health endpoints and admin API
// ABOUTME: Listens on TCP or on a Tailscale node (optionally via public Funnel)

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/lelobhai2456/Pdf-merger/internal/auth"
	"github.com/lelobhai2456/Pdf-merger/internal/config"
	"github.com/lelobhai2456/Pdf-merger/internal/session"
	"github.com/lelobhai2456/Pdf-merger/internal/store"
)

// SessionSource exposes the live sessions of one frontend. *engine.Engine
// implements it.
type SessionSource interface {
	Frontend() string
	Sessions() *session.Store
	TrackedFiles(sessionID string) int
}

// Backlog reports how many users have events queued or in flight.
// *engine.Dispatcher implements it.
type Backlog interface {
	Pending() int
}

// OutcomeLister reads the outcome log.
type OutcomeLister interface {
	ListOutcomes(ctx context.Context, filter store.OutcomeFilter) ([]*store.Outcome, error)
}

// Options are the gateway's dependencies. Webhook may be nil when no
// Telegram frontend is configured.
type Options struct {
	Config   *config.Config
	Webhook  http.Handler
	Sessions []SessionSource
	Backlogs []Backlog
	Outcomes OutcomeLister
	Logger   *slog.Logger
}

// Gateway serves HTTP for the bot.
type Gateway struct {
	config      *config.Config
	sessions    []SessionSource
	backlogs    []Backlog
	outcomes    OutcomeLister
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// ready is set once the webhook has been registered
	ready atomic.Bool

	// publicURL is the Funnel URL when running on Tailscale
	publicURL string
}

// New creates a Gateway and its routes.
func New(opts Options) (*Gateway, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		config:   opts.Config,
		sessions: opts.Sessions,
		backlogs: opts.Backlogs,
		outcomes: opts.Outcomes,
		logger:   logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	if opts.Webhook != nil {
		mux.Handle(opts.Config.WebhookPath(), opts.Webhook)
	}

	api, err := g.apiHandler()
	if err != nil {
		return nil, err
	}
	mux.Handle("/api/", api)

	g.httpServer = &http.Server{
		Addr:              opts.Config.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g, nil
}

// apiHandler builds the admin API, wrapped in JWT auth when a secret is set.
func (g *Gateway) apiHandler() (http.Handler, error) {
	api := http.NewServeMux()
	api.HandleFunc("/api/sessions", g.handleListSessions)
	api.HandleFunc("/api/outcomes", g.handleListOutcomes)

	if g.config.Auth.JWTSecret == "" {
		g.logger.Warn("auth disabled - no jwt_secret configured, admin API is open")
		return api, nil
	}

	verifier, err := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}
	g.logger.Info("admin API auth enabled (JWT)")
	return auth.HTTPAuthMiddleware(verifier)(api), nil
}

// Handler returns the root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// SetReady marks the webhook as registered (or not).
func (g *Gateway) SetReady(ready bool) {
	g.ready.Store(ready)
}

// PublicURL returns the Tailscale Funnel URL, or "" when not on Funnel.
// It is only meaningful after Listen.
func (g *Gateway) PublicURL() string {
	return g.publicURL
}

// Listen opens the HTTP listener, on Tailscale when enabled.
func (g *Gateway) Listen(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run serves HTTP on ln until ctx is cancelled, then shuts down gracefully.
// Returns nil on graceful shutdown, or the server error.
func (g *Gateway) Run(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and the Tailscale node.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")
	g.SetReady(false)

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if g.tsnetServer != nil {
		if err := g.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "pdfmerge", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key or TS_AUTHKEY")
	}
	return authKey, nil
}

// setupTailscaleListener starts a tsnet node and listens on it. With Funnel
// the listener is public HTTPS on :443 and the node's DNS name becomes the
// webhook base URL.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	if !tsCfg.Funnel {
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}

	g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
	ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
	}
	g.publicURL = funnelURL(status)
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// funnelURL derives the public base URL from the node's DNS name.
func funnelURL(status *ipnstate.Status) string {
	if status == nil || status.Self == nil || status.Self.DNSName == "" {
		return ""
	}
	return "https://" + strings.TrimSuffix(status.Self.DNSName, ".")
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the webhook is registered.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if !g.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("webhook not registered"))
		return
	}
	active, busy := 0, 0
	for _, src := range g.sessions {
		active += src.Sessions().Len()
	}
	for _, b := range g.backlogs {
		busy += b.Pending()
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d active sessions, %d busy users)", active, busy)
}
