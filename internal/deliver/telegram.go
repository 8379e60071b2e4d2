// Package deliver pushes a rendered digest to Telegram. Delivery is an
// optional tail of the run: it activates only when both bot token and
// chat id are configured.
package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/briefwire/newsbrief/internal/logger"
	"github.com/briefwire/newsbrief/internal/metrics"
	"github.com/briefwire/newsbrief/internal/retry"
)

const (
	defaultBaseURL = "https://api.telegram.org"

	// MaxMessageLen is the largest digest the transport accepts. Telegram
	// caps messages at 4096 chars; the headroom covers markup expansion.
	MaxMessageLen = 4000
)

// Telegram sends HTML messages through the Bot API.
type Telegram struct {
	token   string
	chatID  string
	client  *http.Client
	baseURL string
	policy  retry.Policy
}

// NewTelegram builds a sender. A nil client gets a 30s timeout default.
func NewTelegram(token, chatID string, client *http.Client) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Telegram{
		token:   token,
		chatID:  chatID,
		client:  client,
		baseURL: defaultBaseURL,
		policy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			Jitter:      0.2,
			OnRetry: func(attempt int, err error) {
				metrics.Global.IncrementRetries()
				logger.Warn("telegram send failed, retrying", "attempt", attempt, "error", err)
			},
		},
	}
}

// Enabled reports whether delivery is configured.
func (t *Telegram) Enabled() bool {
	return t != nil && t.token != "" && t.chatID != ""
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers one HTML message, retrying transient failures.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.Enabled() {
		return errors.New("telegram delivery not configured")
	}
	if len(text) == 0 {
		return errors.New("empty message")
	}

	err := retry.WithRetry(ctx, t.policy, func() error {
		return t.sendOnce(ctx, text)
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	metrics.Global.IncrementDigestsDelivered()
	logger.Info("digest delivered to telegram", "chars", len(text))
	return nil
}

func (t *Telegram) sendOnce(ctx context.Context, text string) error {
	payload := sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("encode payload: %w", err))
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	var api apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &api)

	if resp.StatusCode == http.StatusOK && api.OK {
		return nil
	}

	sendErr := fmt.Errorf("telegram API status %d: %s", resp.StatusCode, api.Description)
	// Rate limits and server trouble are worth retrying; everything else
	// (bad token, malformed markup, unknown chat) is not.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return sendErr
	}
	return retry.Permanent(sendErr)
}
