package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

const slackAPIBase = "https://slack.com/api"

// SlackChannel posts Block Kit alert messages through a Slack bot.
// Integration config carries channel and optional mention_team; the
// secrets carry bot_token.
type SlackChannel struct {
	client Doer
}

func NewSlackChannel(client Doer) *SlackChannel {
	return &SlackChannel{client: client}
}

func (c *SlackChannel) Type() string {
	return "slack"
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text"`
	Blocks  []slackBlock `json:"blocks,omitempty"`
}

type slackAPIResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (c *SlackChannel) Send(ctx context.Context, payload map[string]any, cfg ports.ChannelConfig) error {
	channelID := cfg.Config["channel"]
	if channelID == "" {
		return fmt.Errorf("slack channel missing: %w", ports.ErrChannelConfig)
	}

	msg := slackMessage{
		Channel: channelID,
		Text:    summaryLine(payload),
		Blocks:  buildAlertBlocks(payload, cfg.Config["mention_team"]),
	}
	return c.call(ctx, cfg, "chat.postMessage", msg)
}

// Test verifies the bot token against auth.test.
func (c *SlackChannel) Test(ctx context.Context, cfg ports.ChannelConfig) error {
	return c.call(ctx, cfg, "auth.test", map[string]string{})
}

// call posts to the Slack Web API. Slack reports failures in the body
// with HTTP 200, so the ok flag decides, not the status code.
func (c *SlackChannel) call(ctx context.Context, cfg ports.ChannelConfig, method string, body any) error {
	token := cfg.Secrets["bot_token"]
	if token == "" {
		return fmt.Errorf("slack bot_token missing: %w", ports.ErrChannelConfig)
	}

	base := cfg.Config["api_base"]
	if base == "" {
		base = slackAPIBase
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/"+method, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var apiResp slackAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decoding slack response: %w", err)
	}
	if !apiResp.OK {
		return fmt.Errorf("slack api error: %s", apiResp.Error)
	}
	return nil
}

func buildAlertBlocks(payload map[string]any, mentionTeam string) []slackBlock {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "🚨 Exposure Alert"},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fieldLines(payload)},
		},
	}

	if created, ok := payload["created_at"].(string); ok {
		blocks = append(blocks, slackBlock{
			Type: "context",
			Elements: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("Observed: *%s*", created)},
			},
		})
	}

	if mentionTeam != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("🔔 %s", mentionTeam)},
		})
	}

	return blocks
}

func fieldLines(payload map[string]any) string {
	var b strings.Builder
	for _, key := range []string{"rule", "severity", "source", "matched_entity", "exposure_types", "confidence"} {
		value, ok := payload[key]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "*%s:* %v\n", key, value)
	}
	if b.Len() == 0 {
		return "_all fields redacted_"
	}
	return b.String()
}
