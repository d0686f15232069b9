// ABOUTME: Telegram Bot API client implementing the engine transport
// ABOUTME: Sends text and documents, downloads attachments, registers the webhook

package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lelobhai2456/Pdf-merger/internal/engine"
)

// ErrTooLarge is returned when a download exceeds the configured limit.
var ErrTooLarge = errors.New("file exceeds download limit")

// ClientConfig configures a Client. Endpoints default to the public Bot API.
type ClientConfig struct {
	Token            string
	APIEndpoint      string // format string taking token and method
	FileEndpoint     string // format string taking token and file path
	HTTPClient       *http.Client
	MaxDownloadBytes int64

	// APITimeout bounds Bot API calls the library makes without a context
	// (sends, webhook registration). Defaults to DefaultAPITimeout. It is not
	// applied to attachment fetches, which are bounded by the caller's ctx.
	APITimeout time.Duration
}

// DefaultAPITimeout is the ClientConfig.APITimeout default.
const DefaultAPITimeout = 2 * time.Minute

// Client talks to the Telegram Bot API.
type Client struct {
	bot          *tgbotapi.BotAPI
	fetch        *http.Client // no client timeout; ctx bounds every fetch
	apiEndpoint  string
	fileEndpoint string
	maxDownload  int64
	logger       *slog.Logger
}

// NewClient connects to the Bot API and verifies the token with getMe.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiEndpoint := cfg.APIEndpoint
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	fileEndpoint := cfg.FileEndpoint
	if fileEndpoint == "" {
		fileEndpoint = tgbotapi.FileEndpoint
	}
	apiTimeout := cfg.APITimeout
	if apiTimeout <= 0 {
		apiTimeout = DefaultAPITimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: apiTimeout}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, apiEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}

	c := &Client{
		bot:          bot,
		fetch:        &http.Client{Transport: httpClient.Transport},
		apiEndpoint:  apiEndpoint,
		fileEndpoint: fileEndpoint,
		maxDownload:  cfg.MaxDownloadBytes,
		logger:       logger.With("component", "telegram"),
	}
	c.logger.Info("authorized with telegram", "username", bot.Self.UserName)
	return c, nil
}

// Username returns the bot's username.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// SendDocument uploads the file at path with a caption.
func (c *Client) SendDocument(ctx context.Context, chatID, path, caption string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(id, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := c.bot.Send(doc); err != nil {
		return fmt.Errorf("sending document: %w", err)
	}
	return nil
}

// FetchAttachment downloads the file behind ref to dest. On failure dest is
// removed.
func (c *Client) FetchAttachment(ctx context.Context, ref engine.AttachmentRef, dest string) error {
	file, err := c.getFile(ctx, ref.FileID)
	if err != nil {
		return fmt.Errorf("resolving file: %w", err)
	}

	fileURL := fmt.Sprintf(c.fileEndpoint, c.bot.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.fetch.Do(req)
	if err != nil {
		return fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading file: unexpected status %d", resp.StatusCode)
	}

	if err := c.writeFile(dest, resp.Body); err != nil {
		_ = os.Remove(dest)
		return err
	}
	return nil
}

// getFile calls the getFile method under ctx. BotAPI.GetFile takes no
// context, so the request is made here with the library's response types.
func (c *Client) getFile(ctx context.Context, fileID string) (tgbotapi.File, error) {
	form := url.Values{"file_id": {fileID}}
	endpoint := fmt.Sprintf(c.apiEndpoint, c.bot.Token, "getFile")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tgbotapi.File{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.fetch.Do(req)
	if err != nil {
		return tgbotapi.File{}, err
	}
	defer resp.Body.Close()

	var apiResp tgbotapi.APIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiResp); err != nil {
		return tgbotapi.File{}, fmt.Errorf("decoding getFile response: %w", err)
	}
	if !apiResp.Ok {
		return tgbotapi.File{}, &tgbotapi.Error{Code: apiResp.ErrorCode, Message: apiResp.Description}
	}

	var file tgbotapi.File
	if err := json.Unmarshal(apiResp.Result, &file); err != nil {
		return tgbotapi.File{}, fmt.Errorf("decoding file: %w", err)
	}
	return file, nil
}

func (c *Client) writeFile(dest string, body io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	src := body
	if c.maxDownload > 0 {
		src = io.LimitReader(body, c.maxDownload+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	if copyErr != nil {
		return fmt.Errorf("writing file: %w", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing file: %w", closeErr)
	}
	if c.maxDownload > 0 && n > c.maxDownload {
		return ErrTooLarge
	}
	return nil
}

// SetWebhook registers webhookURL as the bot's webhook.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string, dropPending bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("building webhook config: %w", err)
	}
	wh.DropPendingUpdates = dropPending

	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("setting webhook: %w", err)
	}
	c.logger.Info("webhook registered", "drop_pending_updates", dropPending)
	return nil
}

// DeleteWebhook removes the bot's webhook.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	return nil
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	return id, nil
}

var _ engine.Transport = (*Client)(nil)
