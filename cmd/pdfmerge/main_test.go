// ABOUTME: Tests for the pdfmerge CLI commands and logger setup
// ABOUTME: Exercises commands in-process through cobra

package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lelobhai2456/Pdf-merger/internal/auth"
	"github.com/lelobhai2456/Pdf-merger/internal/config"
	"github.com/lelobhai2456/Pdf-merger/internal/ledger"
	"github.com/lelobhai2456/Pdf-merger/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	color.NoColor = true
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pdfmerge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("PDFMERGE_CONFIG", "/etc/pdfmerge.yaml")
	assert.Equal(t, "/flag.yaml", resolveConfigPath("/flag.yaml"))
	assert.Equal(t, "/etc/pdfmerge.yaml", resolveConfigPath(""))
}

func TestTokenCmd(t *testing.T) {
	path := writeConfig(t, `
bot:
  token: "123456:TEST"
  base_url: "https://bot.example.com"
auth:
  jwt_secret: "`+testSecret+`"
`)

	out, err := execute(t, "--config", path, "token", "--subject", "ops", "--ttl", "1h")
	require.NoError(t, err)

	verifier, err := auth.NewJWTVerifier([]byte(testSecret))
	require.NoError(t, err)
	subject, err := verifier.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", subject)
}

func TestTokenCmd_RequiresSubject(t *testing.T) {
	path := writeConfig(t, `
bot:
  token: "123456:TEST"
  base_url: "https://bot.example.com"
`)
	_, err := execute(t, "--config", path, "token")
	assert.Error(t, err)
}

func TestRunToken_NoSecret(t *testing.T) {
	var out bytes.Buffer
	err := runToken("", "ops", time.Hour, &out)
	assert.ErrorContains(t, err, "jwt_secret")
	assert.Empty(t, out.String())
}

func TestHealthURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"0.0.0.0:5000", "http://127.0.0.1:5000/health"},
		{":8080", "http://127.0.0.1:8080/health"},
		{"10.0.0.2:5000", "http://10.0.0.2:5000/health"},
		{"https://bot.example.com/", "https://bot.example.com/health"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, healthURL(tt.addr, "/health"), tt.addr)
	}
}

func TestHealthCmd(t *testing.T) {
	var ready atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte("OK"))
		case "/health/ready":
			if !ready.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("webhook not registered"))
				return
			}
			_, _ = w.Write([]byte("ready (0 active sessions)"))
		}
	}))
	defer srv.Close()

	out, err := execute(t, "health", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "healthy: OK")

	_, err = execute(t, "health", "--addr", srv.URL, "--ready")
	assert.ErrorContains(t, err, "503")

	ready.Store(true)
	out, err = execute(t, "health", "--addr", srv.URL, "--ready")
	require.NoError(t, err)
	assert.Contains(t, out, "ready (0 active sessions)")
}

func TestRunSweep(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := store.NewSQLiteStore(filepath.Join(dir, "pdfmerge.db"))
	require.NoError(t, err)
	defer db.Close()

	orphan := filepath.Join(dir, "42_1_report.pdf")
	require.NoError(t, os.WriteFile(orphan, []byte("%PDF"), 0o600))

	previous := ledger.New(db, slog.Default())
	previous.Track(ctx, "s1", "42", orphan)
	previous.Track(ctx, "s1", "42", filepath.Join(dir, "42_2_gone.pdf"))

	var out bytes.Buffer
	require.NoError(t, runSweep(ctx, ledger.New(db, slog.Default()), &out, slog.Default()))
	assert.Equal(t, "removed 1, already gone 1, failed 0\n", out.String())
	assert.NoFileExists(t, orphan)

	records, err := db.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSetupLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
		logger.Info("hidden")
		logger.Warn("shown", "user_id", "42")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"msg":"shown"`)
		assert.Contains(t, buf.String(), `"user_id":"42"`)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
		logger.With("component", "engine").WithGroup("merge").Debug("merging", "files", 3)

		line := buf.String()
		assert.Contains(t, line, "DBG merging")
		assert.Contains(t, line, "component=engine")
		assert.Contains(t, line, "merge.files=3")
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestPrintBanner(t *testing.T) {
	cfg := config.Default()
	cfg.Tailscale.Enabled = true
	cfg.Tailscale.Funnel = true

	var buf bytes.Buffer
	printBanner(&buf, cfg, "")
	out := buf.String()

	assert.Contains(t, out, "version: "+version)
	assert.Contains(t, out, "(defaults + environment)")
	assert.Contains(t, out, "pdfmerge [funnel]")
}
