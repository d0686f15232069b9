// ABOUTME: Configuration loading and parsing for the PDF merge bot
// ABOUTME: YAML or TOML files with ${VAR} expansion, env overrides and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MaxAttachments is the largest accepted limits.max_attachments.
const MaxAttachments = 99

// Config represents the complete bot configuration
type Config struct {
	Bot       BotConfig       `yaml:"bot" toml:"bot"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Limits    LimitsConfig    `yaml:"limits" toml:"limits"`
	Engine    EngineConfig    `yaml:"engine" toml:"engine"`
	Matrix    MatrixConfig    `yaml:"matrix" toml:"matrix"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// BotConfig holds Telegram bot configuration
type BotConfig struct {
	Token              string `yaml:"token" toml:"token"`
	BaseURL            string `yaml:"base_url" toml:"base_url"`
	DropPendingUpdates bool   `yaml:"drop_pending_updates" toml:"drop_pending_updates"`
}

// ServerConfig holds the HTTP listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // public HTTPS on :443
}

// StorageConfig holds file and database locations
type StorageConfig struct {
	TempDir      string `yaml:"temp_dir" toml:"temp_dir"`
	DatabasePath string `yaml:"database_path" toml:"database_path"`
}

// LimitsConfig bounds what a single session may consume
type LimitsConfig struct {
	MaxAttachments         int   `yaml:"max_attachments" toml:"max_attachments"`
	MaxAttachmentBytes     int64 `yaml:"max_attachment_bytes" toml:"max_attachment_bytes"`
	MaxSessionBytes        int64 `yaml:"max_session_bytes" toml:"max_session_bytes"`
	MaxConcurrentDownloads int64 `yaml:"max_concurrent_downloads" toml:"max_concurrent_downloads"`

	DownloadTimeout time.Duration `yaml:"-" toml:"-"`
	MergeTimeout    time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	DownloadTimeoutRaw string `yaml:"download_timeout" toml:"download_timeout"`
	MergeTimeoutRaw    string `yaml:"merge_timeout" toml:"merge_timeout"`
}

// EngineConfig holds dispatcher settings
type EngineConfig struct {
	MailboxSize int `yaml:"mailbox_size" toml:"mailbox_size"`
}

// MatrixConfig holds Matrix frontend configuration
type MatrixConfig struct {
	Enabled      bool     `yaml:"enabled" toml:"enabled"`
	Homeserver   string   `yaml:"homeserver" toml:"homeserver"`
	UserID       string   `yaml:"user_id" toml:"user_id"`
	AccessToken  string   `yaml:"access_token" toml:"access_token"`
	AllowedRooms []string `yaml:"allowed_rooms" toml:"allowed_rooms"`
}

// AuthConfig holds admin API authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: "0.0.0.0:5000"},
		Tailscale: TailscaleConfig{
			Hostname: "pdfmerge",
		},
		Storage: StorageConfig{
			TempDir:      "pdf_temp",
			DatabasePath: "pdfmerge.db",
		},
		Limits: LimitsConfig{
			MaxAttachments:         MaxAttachments,
			MaxAttachmentBytes:     20 << 20,
			MaxSessionBytes:        500 << 20,
			MaxConcurrentDownloads: 8,
			DownloadTimeoutRaw:     "60s",
			MergeTimeoutRaw:        "2m",
		},
		Engine:  EngineConfig{MailboxSize: 256},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the configuration file at path over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file. Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := decode(path, expandEnvVars(string(data)), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func decode(path, data string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(data, cfg)
		return err
	}
	return yaml.Unmarshal([]byte(data), cfg)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyEnv applies the deployment environment variables, which win over the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("RENDER_EXTERNAL_URL"); v != "" {
		cfg.Bot.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.HTTPAddr = "0.0.0.0:" + v
	}
	if v := os.Getenv("PDFMERGE_DB_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv("PDFMERGE_TEMP_DIR"); v != "" {
		cfg.Storage.TempDir = v
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required (or set TOKEN)")
	}

	if c.Bot.BaseURL == "" {
		if !c.Tailscale.Enabled || !c.Tailscale.Funnel {
			return errors.New("bot.base_url is required (or set RENDER_EXTERNAL_URL, or enable tailscale funnel)")
		}
	} else {
		u, err := url.Parse(c.Bot.BaseURL)
		if err != nil {
			return fmt.Errorf("bot.base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("bot.base_url must use http or https scheme")
		}
	}

	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Storage.TempDir == "" {
		return errors.New("storage.temp_dir is required")
	}
	if c.Storage.DatabasePath == "" {
		return errors.New("storage.database_path is required")
	}

	if c.Limits.MaxAttachments < 1 || c.Limits.MaxAttachments > MaxAttachments {
		return fmt.Errorf("limits.max_attachments must be between 1 and %d", MaxAttachments)
	}
	if c.Limits.MaxAttachmentBytes <= 0 {
		return errors.New("limits.max_attachment_bytes must be positive")
	}
	if c.Limits.MaxSessionBytes <= 0 {
		return errors.New("limits.max_session_bytes must be positive")
	}
	if c.Limits.MaxConcurrentDownloads <= 0 {
		return errors.New("limits.max_concurrent_downloads must be positive")
	}
	if c.Limits.DownloadTimeout <= 0 {
		return errors.New("limits.download_timeout must be positive")
	}
	if c.Limits.MergeTimeout <= 0 {
		return errors.New("limits.merge_timeout must be positive")
	}
	if c.Engine.MailboxSize <= 0 {
		return errors.New("engine.mailbox_size must be positive")
	}

	if c.Matrix.Enabled {
		if c.Matrix.Homeserver == "" {
			return errors.New("matrix.homeserver is required when matrix is enabled")
		}
		if _, err := url.Parse(c.Matrix.Homeserver); err != nil {
			return fmt.Errorf("matrix.homeserver is not a valid URL: %w", err)
		}
		if c.Matrix.UserID == "" {
			return errors.New("matrix.user_id is required when matrix is enabled")
		}
		if c.Matrix.AccessToken == "" {
			return errors.New("matrix.access_token is required when matrix is enabled")
		}
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// WebhookPath is the HTTP path Telegram posts updates to.
func (c *Config) WebhookPath() string {
	return "/" + c.Bot.Token
}

// WebhookURL is the public URL registered with Telegram, built on baseURL
// when set and on bot.base_url otherwise.
func (c *Config) WebhookURL(baseURL string) string {
	if baseURL == "" {
		baseURL = c.Bot.BaseURL
	}
	return strings.TrimRight(baseURL, "/") + c.WebhookPath()
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Limits.DownloadTimeoutRaw != "" {
		cfg.Limits.DownloadTimeout, err = time.ParseDuration(cfg.Limits.DownloadTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing download_timeout %q: %w", cfg.Limits.DownloadTimeoutRaw, err)
		}
	}

	if cfg.Limits.MergeTimeoutRaw != "" {
		cfg.Limits.MergeTimeout, err = time.ParseDuration(cfg.Limits.MergeTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing merge_timeout %q: %w", cfg.Limits.MergeTimeoutRaw, err)
		}
	}

	return nil
}
