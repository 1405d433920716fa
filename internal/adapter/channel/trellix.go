package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// TrellixChannel forwards alerts to a Trellix ePO event intake. The
// integration config carries epo_url; the secrets carry token.
type TrellixChannel struct {
	client Doer
}

func NewTrellixChannel(client Doer) *TrellixChannel {
	return &TrellixChannel{client: client}
}

func (c *TrellixChannel) Type() string {
	return "trellix"
}

func (c *TrellixChannel) Send(ctx context.Context, payload map[string]any, cfg ports.ChannelConfig) error {
	url := strings.TrimSuffix(cfg.Config["epo_url"], "/")
	if url == "" {
		return fmt.Errorf("trellix epo_url missing: %w", ports.ErrChannelConfig)
	}
	body := map[string]any{
		"eventType": "darkguard.alert",
		"summary":   summaryLine(payload),
		"details":   payload,
	}
	return postJSON(ctx, c.client, url+"/events", body, bearerDecorator(cfg.Secrets["token"]))
}

func (c *TrellixChannel) Test(ctx context.Context, cfg ports.ChannelConfig) error {
	url := strings.TrimSuffix(cfg.Config["epo_url"], "/")
	if url == "" {
		return fmt.Errorf("trellix epo_url missing: %w", ports.ErrChannelConfig)
	}
	body := map[string]any{"eventType": "darkguard.test"}
	return postJSON(ctx, c.client, url+"/events", body, bearerDecorator(cfg.Secrets["token"]))
}
