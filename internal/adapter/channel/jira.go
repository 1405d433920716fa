package channel

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// JiraChannel opens an issue for each alert. It expects the
// integration config to carry base_url / project_key and the secrets
// to carry user / api_token.
type JiraChannel struct {
	client Doer
}

func NewJiraChannel(client Doer) *JiraChannel {
	return &JiraChannel{client: client}
}

func (c *JiraChannel) Type() string {
	return "jira"
}

func (c *JiraChannel) Send(ctx context.Context, payload map[string]any, cfg ports.ChannelConfig) error {
	base := strings.TrimSuffix(cfg.Config["base_url"], "/")
	project := cfg.Config["project_key"]
	if base == "" || project == "" {
		return fmt.Errorf("jira base_url or project_key missing: %w", ports.ErrChannelConfig)
	}

	issueType := cfg.Config["issue_type"]
	if issueType == "" {
		issueType = "Task"
	}

	body := map[string]any{
		"fields": map[string]any{
			"project":     map[string]string{"key": project},
			"issuetype":   map[string]string{"name": issueType},
			"summary":     summaryLine(payload),
			"description": describePayload(payload),
		},
	}
	return postJSON(ctx, c.client, base+"/rest/api/2/issue", body, c.auth(cfg))
}

// Test hits the issue creation metadata endpoint, which exercises auth
// without creating anything.
func (c *JiraChannel) Test(ctx context.Context, cfg ports.ChannelConfig) error {
	base := strings.TrimSuffix(cfg.Config["base_url"], "/")
	if base == "" {
		return fmt.Errorf("jira base_url missing: %w", ports.ErrChannelConfig)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/rest/api/2/myself", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if decorate := c.auth(cfg); decorate != nil {
		decorate(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("jira returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *JiraChannel) auth(cfg ports.ChannelConfig) func(*http.Request) {
	user := cfg.Secrets["user"]
	token := cfg.Secrets["api_token"]
	if user == "" && token == "" {
		return nil
	}
	return func(req *http.Request) {
		req.SetBasicAuth(user, token)
	}
}

func describePayload(payload map[string]any) string {
	var b strings.Builder
	for _, key := range []string{"rule", "severity", "source", "matched_entity", "exposure_types", "confidence", "raw_snippet", "created_at", "finding_id"} {
		if value, ok := payload[key]; ok {
			fmt.Fprintf(&b, "%s: %v\n", key, value)
		}
	}
	return b.String()
}
