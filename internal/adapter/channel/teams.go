package channel

import (
	"context"
	"fmt"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// TeamsChannel posts a message card to an O365 Teams incoming webhook.
// The integration config carries webhook_url.
type TeamsChannel struct {
	client Doer
}

func NewTeamsChannel(client Doer) *TeamsChannel {
	return &TeamsChannel{client: client}
}

func (c *TeamsChannel) Type() string {
	return "o365"
}

func (c *TeamsChannel) Send(ctx context.Context, payload map[string]any, cfg ports.ChannelConfig) error {
	url := cfg.Config["webhook_url"]
	if url == "" {
		return fmt.Errorf("teams webhook_url missing: %w", ports.ErrChannelConfig)
	}
	body := map[string]string{"text": summaryLine(payload) + "\n\n" + describePayload(payload)}
	return postJSON(ctx, c.client, url, body, nil)
}

func (c *TeamsChannel) Test(ctx context.Context, cfg ports.ChannelConfig) error {
	url := cfg.Config["webhook_url"]
	if url == "" {
		return fmt.Errorf("teams webhook_url missing: %w", ports.ErrChannelConfig)
	}
	body := map[string]string{"text": "DarkGuard connectivity test"}
	return postJSON(ctx, c.client, url, body, nil)
}
