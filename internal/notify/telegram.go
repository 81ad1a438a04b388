package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	telegramAPIBase   = "https://api.telegram.org"
	sendMaxAttempts   = 5
	sendInitialDelay  = 2 * time.Second
	telegramParseMode = "Markdown"
)

// httpDoer is the slice of http.Client the bot needs; swapped in tests.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TelegramBot is the process-wide delivery handle for the digest channel.
// It is constructed once, initialized once (Init verifies the token against
// getMe), and shut down once; components that send messages receive it as a
// dependency rather than reaching for shared mutable state.
type TelegramBot struct {
	apiBase    string
	token      string
	channelID  string
	client     httpDoer
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewTelegramBot creates an uninitialized bot handle.
func NewTelegramBot(token, channelID string, logger zerolog.Logger) *TelegramBot {
	return &TelegramBot{
		apiBase:    telegramAPIBase,
		token:      token,
		channelID:  channelID,
		client:     &http.Client{Timeout: 30 * time.Second},
		retryDelay: sendInitialDelay,
		logger:     logger.With().Str("component", "telegram").Logger(),
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Init verifies the bot token. Failure here is fatal to startup when
// delivery is enabled.
func (b *TelegramBot) Init(ctx context.Context) error {
	if err := b.call(ctx, "getMe", nil); err != nil {
		return fmt.Errorf("telegram bot init failed: %w", err)
	}
	b.logger.Info().Msg("telegram_bot_initialized")
	return nil
}

// Shutdown releases the bot's idle connections.
func (b *TelegramBot) Shutdown() {
	if c, ok := b.client.(*http.Client); ok {
		c.CloseIdleConnections()
	}
	b.logger.Info().Msg("telegram_bot_shut_down")
}

// Send posts a message to the configured channel, retrying with exponential
// backoff. Delivery is at-most-once per attempt; a message that fails all
// attempts is dropped with an error.
func (b *TelegramBot) Send(ctx context.Context, text string) error {
	payload := map[string]any{
		"chat_id":    b.channelID,
		"text":       text,
		"parse_mode": telegramParseMode,
	}

	delay := b.retryDelay
	var lastErr error
	for attempt := 1; attempt <= sendMaxAttempts; attempt++ {
		lastErr = b.call(ctx, "sendMessage", payload)
		if lastErr == nil {
			b.logger.Info().Str("channel_id", b.channelID).Msg("telegram_message_sent")
			return nil
		}

		b.logger.Warn().
			Err(lastErr).
			Int("retry", attempt).
			Int("of", sendMaxAttempts).
			Dur("waiting_for", delay).
			Msg("telegram_send_failed")

		if attempt == sendMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("failed to send telegram message after %d attempts: %w", sendMaxAttempts, lastErr)
}

func (b *TelegramBot) call(ctx context.Context, method string, payload map[string]any) error {
	url := fmt.Sprintf("%s/bot%s/%s", b.apiBase, b.token, method)

	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp telegramResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return fmt.Errorf("failed to unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, apiResp.Description)
	}
	return nil
}
