package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// TelegramAPIURL is the public Bot API endpoint.
const TelegramAPIURL = "https://api.telegram.org"

// TelegramSender delivers notifications through the Telegram Bot API.
type TelegramSender struct {
	token  string
	chatID string
	client *resty.Client
}

// NewTelegramSender creates a TelegramSender. An empty baseURL selects the
// public Bot API.
func NewTelegramSender(baseURL, token, chatID string) *TelegramSender {
	if baseURL == "" {
		baseURL = TelegramAPIURL
	}
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		client: resty.New().SetBaseURL(baseURL).SetTimeout(defaultSendTimeout),
	}
}

// Send calls sendMessage with the title in bold.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("token", t.token).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       fmt.Sprintf("*%s*\n%s", title, message),
			"parse_mode": "Markdown",
		}).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode(), truncate(resp.String(), 1024))
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
