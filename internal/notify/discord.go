package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	discordColor       = 0x3498db
	discordDescLimit   = 4096
	discordFooter      = "Options Wheel Bot"
	defaultSendTimeout = 10 * time.Second
)

type discordEmbed struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Timestamp   string            `json:"timestamp"`
	Footer      discordFooterText `json:"footer"`
}

type discordFooterText struct {
	Text string `json:"text"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordSender posts embeds to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *resty.Client
	now        func() time.Time
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     resty.New().SetTimeout(defaultSendTimeout),
		now:        time.Now,
	}
}

// Send posts one embed. Discord answers 204 No Content on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	if len(message) > discordDescLimit {
		message = message[:discordDescLimit-3] + "..."
	}
	payload := discordPayload{Embeds: []discordEmbed{{
		Title:       title,
		Description: message,
		Color:       discordColor,
		Timestamp:   d.now().UTC().Format(time.RFC3339),
		Footer:      discordFooterText{Text: discordFooter},
	}}}

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(d.webhookURL)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode(), truncate(resp.String(), 1024))
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
