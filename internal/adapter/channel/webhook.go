package channel

import (
	"context"
	"fmt"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// WebhookChannel POSTs the alert payload as JSON. The endpoint is the
// recipient URL for rule-listed webhooks, or the integration's
// configured url plus optional bearer token for integration-backed
// deliveries.
type WebhookChannel struct {
	client Doer
}

func NewWebhookChannel(client Doer) *WebhookChannel {
	return &WebhookChannel{client: client}
}

func (c *WebhookChannel) Type() string {
	return "webhook"
}

func (c *WebhookChannel) endpoint(cfg ports.ChannelConfig) (string, error) {
	if cfg.Recipient != "" {
		return cfg.Recipient, nil
	}
	if url := cfg.Config["url"]; url != "" {
		return url, nil
	}
	return "", fmt.Errorf("webhook url missing: %w", ports.ErrChannelConfig)
}

func (c *WebhookChannel) Send(ctx context.Context, payload map[string]any, cfg ports.ChannelConfig) error {
	url, err := c.endpoint(cfg)
	if err != nil {
		return err
	}
	return postJSON(ctx, c.client, url, payload, bearerDecorator(cfg.Secrets["token"]))
}

func (c *WebhookChannel) Test(ctx context.Context, cfg ports.ChannelConfig) error {
	url, err := c.endpoint(cfg)
	if err != nil {
		return err
	}
	body := map[string]any{"test": true, "source": "darkguard"}
	return postJSON(ctx, c.client, url, body, bearerDecorator(cfg.Secrets["token"]))
}
