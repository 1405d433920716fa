package channel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strings"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// SMTPConfig carries the relay settings shared by every email delivery.
type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

func (c SMTPConfig) addr() string {
	port := c.Port
	if port == "" {
		port = "587"
	}
	return net.JoinHostPort(c.Host, port)
}

// EmailChannel delivers alerts over SMTP. The recipient is the address
// listed on the rule.
type EmailChannel struct {
	cfg SMTPConfig
}

func NewEmailChannel(cfg SMTPConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

func (c *EmailChannel) Type() string {
	return "email"
}

func (c *EmailChannel) Send(ctx context.Context, payload map[string]any, cfg ports.ChannelConfig) error {
	if c.cfg.Host == "" {
		return fmt.Errorf("smtp relay not configured: %w", ports.ErrChannelConfig)
	}
	if cfg.Recipient == "" {
		return fmt.Errorf("email recipient missing: %w", ports.ErrChannelConfig)
	}

	msg := buildEmail(c.cfg.From, cfg.Recipient, summaryLine(payload), payload)
	return c.sendViaRelay(ctx, cfg.Recipient, msg)
}

// sendViaRelay drives the SMTP session over a context-bound connection.
// smtp.SendMail dials without a deadline, so a stalled relay would hold
// the delivering worker past the call timeout; the connection deadline
// bounds every protocol step instead.
func (c *EmailChannel) sendViaRelay(ctx context.Context, to string, msg []byte) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.addr())
	if err != nil {
		return fmt.Errorf("dialing smtp relay: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("setting relay deadline: %w", err)
		}
	}

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: c.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if ok, _ := client.Extension("AUTH"); ok && c.cfg.Username != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(c.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to %s: %w", to, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing mail body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing mail body: %w", err)
	}
	return client.Quit()
}

// Test checks that the relay accepts connections. It does not send mail.
func (c *EmailChannel) Test(ctx context.Context, cfg ports.ChannelConfig) error {
	if c.cfg.Host == "" {
		return fmt.Errorf("smtp relay not configured: %w", ports.ErrChannelConfig)
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.addr())
	if err != nil {
		return fmt.Errorf("dialing smtp relay: %w", err)
	}
	return conn.Close()
}

func buildEmail(from, to, subject string, payload map[string]any) []byte {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "%s: %v\r\n", key, payload[key])
	}
	return []byte(b.String())
}
