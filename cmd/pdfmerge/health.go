// ABOUTME: health subcommand: queries /health (or /health/ready) of a running server
// ABOUTME: Exits non-zero unless the server answers 200

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd(load configLoader) *cobra.Command {
	var ready bool
	var addr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the health of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				cfg, _, err := load()
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				addr = cfg.Server.HTTPAddr
			}
			path := "/health"
			if ready {
				path = "/health/ready"
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return runHealth(ctx, healthURL(addr, path), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&ready, "ready", false, "check /health/ready instead of /health")
	cmd.Flags().StringVar(&addr, "addr", "", "server address (default: server.http_addr from config)")
	return cmd
}

// healthURL turns a listen address into a URL on loopback when it binds all
// interfaces.
func healthURL(addr, path string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/") + path
	}
	host, port, err := net.SplitHostPort(addr)
	if err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	return "http://" + addr + path
}

func runHealth(ctx context.Context, url string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Fprintf(out, "healthy: %s\n", strings.TrimSpace(string(body)))
	return nil
}
