package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioConfig carries the account used for SMS deliveries.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string // overridable for tests
}

// SMSChannel delivers a one-line alert summary over the Twilio
// Messages API. The recipient is the phone number listed on the rule.
type SMSChannel struct {
	client Doer
	cfg    TwilioConfig
}

func NewSMSChannel(client Doer, cfg TwilioConfig) *SMSChannel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioAPIBase
	}
	return &SMSChannel{client: client, cfg: cfg}
}

func (c *SMSChannel) Type() string {
	return "sms"
}

func (c *SMSChannel) Send(ctx context.Context, payload map[string]any, cfg ports.ChannelConfig) error {
	if cfg.Recipient == "" {
		return fmt.Errorf("sms recipient missing: %w", ports.ErrChannelConfig)
	}
	return c.post(ctx, cfg.Recipient, summaryLine(payload))
}

func (c *SMSChannel) Test(ctx context.Context, cfg ports.ChannelConfig) error {
	if c.cfg.AccountSID == "" || c.cfg.AuthToken == "" {
		return fmt.Errorf("twilio account not configured: %w", ports.ErrChannelConfig)
	}
	if cfg.Recipient == "" {
		return nil
	}
	return c.post(ctx, cfg.Recipient, "DarkGuard test message")
}

func (c *SMSChannel) post(ctx context.Context, to, body string) error {
	if c.cfg.AccountSID == "" || c.cfg.AuthToken == "" {
		return fmt.Errorf("twilio account not configured: %w", ports.ErrChannelConfig)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.cfg.BaseURL, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}
	return nil
}
