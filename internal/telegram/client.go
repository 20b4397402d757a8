// Package telegram provides the Telegram bot integration of the watcher.
//
// This package handles:
//   - Sending new-complaint notifications with inline status buttons
//   - Editing notifications when a complaint changes status
//   - Sending critical alerts when the watcher cannot recover
//   - Long polling for button clicks and applying them through the portal
//
// Architecture:
//   - Client: bot token, chat id, pooled HTTP client and a send rate limiter
//   - HandleUpdates: background loop for long polling
//   - handleCallbackQuery: turns a button click into a status update
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"grievedesk/internal/api"
	"grievedesk/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.telegram.org"

	// pollTimeout is the server-side long polling timeout in seconds.
	pollTimeout = 30
)

// Client represents a Telegram bot client.
//
// A nil *Client is valid: every method logs and does nothing, so the
// watcher runs the same way with Telegram disabled.
type Client struct {
	botToken string
	chatID   string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.SugaredLogger
	debug    bool

	pollRetry time.Duration // first backoff interval of a failing getUpdates
	pollPause time.Duration // pause after getUpdates gave up
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Bot API server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit spaces outgoing calls at least every apart.
func WithRateLimit(every time.Duration) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(every), 1) }
}

// WithPollRetry sets the first retry interval and the pause after a
// failed long poll.
func WithPollRetry(initial, pause time.Duration) Option {
	return func(c *Client) {
		c.pollRetry = initial
		c.pollPause = pause
	}
}

// WithDebug logs outgoing calls instead of sending them.
func WithDebug(debug bool) Option {
	return func(c *Client) { c.debug = debug }
}

// NewClient creates a Telegram client, or returns nil when the bot token
// or chat id is missing.
func NewClient(botToken, chatID string, logger *zap.SugaredLogger, opts ...Option) *Client {
	logger = logging.OrNop(logger)
	if botToken == "" || chatID == "" {
		logger.Warnw("⚠️  Telegram notifications disabled",
			"missing_token", botToken == "",
			"missing_chat_id", chatID == "")
		return nil
	}

	c := &Client{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  defaultBaseURL,
		// Long polling holds the request for pollTimeout, so allow double that
		http:      &http.Client{Timeout: 2 * pollTimeout * time.Second},
		limiter:   rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
		logger:    logger,
		pollRetry: 500 * time.Millisecond,
		pollPause: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.debug {
		logger.Info("🐛 DEBUG MODE ENABLED - Telegram calls will be simulated")
	}
	logger.Info("✓ Telegram configured successfully")
	return c
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// APIError is a Bot API call that answered ok:false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed (%d): %s", e.Method, e.Code, e.Description)
}

// doRequest posts payload to method and decodes the result into out when
// out is non-nil. Calls wait for the rate limiter first.
func (c *Client) doRequest(ctx context.Context, method string, payload, out any) error {
	if c.debug {
		c.logger.Debugw("Simulated Telegram call", "method", method, "payload", payload)
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !result.OK {
		return &APIError{Method: method, Code: result.ErrorCode, Description: result.Description}
	}
	if out != nil && len(result.Result) > 0 {
		if err := json.Unmarshal(result.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// SendComplaintMessage sends a new-complaint notification and returns its
// message id.
//
// Message format:
//
//	📋 Complaint : TKT-1A2B3C4D
//	👤 Asha
//	📧 asha@example.com
//	🏢 Water Supply
//	📅 2025-03-01
//	💬 Details:
//	[description]
//	📍 [address]
//	🔖 Pending
func (c *Client) SendComplaintMessage(ctx context.Context, complaint api.Complaint) (string, error) {
	if c == nil {
		return "", nil
	}
	c.logger.Infow("📨 Sending complaint to Telegram", "ticket", complaint.TicketNumber)

	msg := Message{
		ChatID:                c.chatID,
		Text:                  ComplaintText(complaint),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup:           StatusKeyboard(complaint.TicketNumber, complaint.Status),
	}

	var sent IncomingMessage
	if err := c.doRequest(ctx, "sendMessage", msg, &sent); err != nil {
		return "", fmt.Errorf("failed to send Telegram message: %w", err)
	}

	c.logger.Infow("✓ Complaint sent to Telegram", "ticket", complaint.TicketNumber, "message_id", sent.MessageID)
	if sent.MessageID == 0 {
		return "", nil
	}
	return fmt.Sprint(sent.MessageID), nil
}

// SendCriticalAlert sends a failure alert that needs manual intervention.
func (c *Client) SendCriticalAlert(ctx context.Context, errorType, errorMsg string, retryCount int) error {
	if c == nil {
		return nil
	}
	c.logger.Warnw("🚨 Sending critical alert to Telegram", "type", errorType)

	text := fmt.Sprintf(
		"🚨 <b>CRITICAL ALERT - GRIEVEDESK WATCHER</b>\n\n"+
			"<b>Error Type:</b> %s\n"+
			"<b>Error Message:</b> %s\n"+
			"<b>Retry Attempts:</b> %d\n"+
			"<b>Timestamp:</b> %s\n\n"+
			"⚠️ <b>Action Required:</b> Please check the service immediately.",
		html.EscapeString(errorType),
		html.EscapeString(errorMsg),
		retryCount,
		time.Now().Format("2006-01-02 15:04:05"),
	)
	msg := Message{ChatID: c.chatID, Text: text, ParseMode: "HTML", DisableWebPagePreview: true}
	if err := c.doRequest(ctx, "sendMessage", msg, nil); err != nil {
		return fmt.Errorf("failed to send Telegram alert: %w", err)
	}
	return nil
}

// EditMessageText replaces the text and keyboard of a sent message. A nil
// keyboard removes the buttons.
func (c *Client) EditMessageText(ctx context.Context, messageID, newText string, keyboard *InlineKeyboardMarkup) error {
	if c == nil {
		return nil
	}
	if messageID == "" {
		c.logger.Debug("No message ID provided, skipping edit")
		return nil
	}
	if keyboard == nil {
		keyboard = &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}}
	}

	req := EditMessageRequest{
		ChatID:      c.chatID,
		MessageID:   messageID,
		Text:        newText,
		ParseMode:   "HTML",
		ReplyMarkup: keyboard,
	}
	if err := c.doRequest(ctx, "editMessageText", req, nil); err != nil {
		return fmt.Errorf("failed to edit Telegram message: %w", err)
	}
	return nil
}

func (c *Client) sendText(ctx context.Context, text string) {
	msg := Message{ChatID: c.chatID, Text: text, ParseMode: "HTML"}
	if err := c.doRequest(ctx, "sendMessage", msg, nil); err != nil {
		c.logger.Warnw("Failed to send Telegram message", "error", err)
	}
}

func (c *Client) answerCallbackQuery(ctx context.Context, callbackQueryID, text string) {
	payload := map[string]any{
		"callback_query_id": callbackQueryID,
		"text":              text,
		"show_alert":        false,
	}
	if err := c.doRequest(ctx, "answerCallbackQuery", payload, nil); err != nil {
		c.logger.Warnw("Failed to answer callback query", "error", err)
	}
}
