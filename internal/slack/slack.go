// Package slack provides a client for sending messages to Slack.
package slack

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ashwanthkumar/slack-go-webhook"
)

// Config contains the configuration needed for Slack
type Config struct {
	WebhookURLs []string `env:"WEBHOOKS"`
	Username    string   `env:"USERNAME,default=trkt"`
	IconEmoji   string   `env:"ICON_EMOJI,default=:tv:"`
}

// sendFunc sends a payload to a webhook.
type sendFunc func(webhookURL string, proxy string, payload slack.Payload) []error

// Client is a Slack client for sending messages.
// It implements o11y.Reporter.
type Client struct {
	webhookURLs []string
	username    string
	iconEmoji   string
	send        sendFunc
}

// NewClient creates a new Slack client.
// Returns nil if no webhooks are configured.
func NewClient(cfg Config) *Client {
	if len(cfg.WebhookURLs) == 0 {
		return nil
	}
	return &Client{
		webhookURLs: cfg.WebhookURLs,
		username:    cfg.Username,
		iconEmoji:   cfg.IconEmoji,
		send:        slack.Send,
	}
}

// SendMessage sends a message to the registered Slack channels.
// The message is always logged. Noop if the client is nil.
func (c *Client) SendMessage(ctx context.Context, msg string) {
	slog.InfoContext(ctx, msg)

	if c == nil {
		return
	}

	for _, wh := range c.webhookURLs {
		payload := slack.Payload{
			Text:      msg,
			Username:  c.username,
			IconEmoji: c.iconEmoji,
		}
		if errs := c.send(wh, "", payload); len(errs) > 0 {
			slog.ErrorContext(ctx, "failed sending slack message", "error", errors.Join(errs...))
		}
	}
}
