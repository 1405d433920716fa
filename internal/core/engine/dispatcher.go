package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// delivery is one resolved recipient channel of a dispatch. configErr
// carries a classified resolution failure (unknown channel type or no
// active integration) that short-circuits delivery for this channel
// only.
type delivery struct {
	channel   string
	adapter   ports.ChannelAdapter
	cfg       ports.ChannelConfig
	configErr string
}

// Dispatcher fans a match out to the rule's recipient channels. Each
// channel attempt is independent and retried with bounded backoff;
// exhausted attempts are recorded as failed and stay queryable for
// operator remediation. The atomic (finding, rule) claim guarantees at
// most one dispatch in flight per pair and suppresses re-sends on
// re-evaluation.
type Dispatcher struct {
	orgs         ports.OrganizationRepository
	integrations ports.IntegrationRepository
	dispatches   ports.DispatchRepository
	channels     ports.ChannelRegistry
	audit        *AuditRecorder
	bus          ports.EventPublisher
	retry        RetryConfig
}

func NewDispatcher(
	orgs ports.OrganizationRepository,
	integrations ports.IntegrationRepository,
	dispatches ports.DispatchRepository,
	channels ports.ChannelRegistry,
	audit *AuditRecorder,
	bus ports.EventPublisher,
	retry RetryConfig,
) *Dispatcher {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Dispatcher{
		orgs:         orgs,
		integrations: integrations,
		dispatches:   dispatches,
		channels:     channels,
		audit:        audit,
		bus:          bus,
		retry:        retry,
	}
}

// DispatchMatch delivers the sanitized payload of one (finding, rule)
// match. It returns nil attempts without error when the pair was
// already claimed or the organization has been deactivated.
func (d *Dispatcher) DispatchMatch(ctx context.Context, f domain.Finding, rule domain.AlertRule) ([]domain.DispatchAttempt, error) {
	// Deactivation check happens immediately before the claim: already
	// claimed attempts complete, no new dispatch work starts.
	org, err := d.orgs.GetOrganization(ctx, f.OrgID)
	if err != nil {
		return nil, err
	}
	if !org.IsActive {
		return nil, nil
	}

	claimed, err := d.dispatches.ClaimDispatch(ctx, f.OrgID, f.ID, rule.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}
	recordMatch()

	payload := rule.RedactionPolicy.Apply(domain.PayloadFromFinding(f))
	payload["rule"] = rule.Name

	deliveries := d.expandRecipients(ctx, f.OrgID, rule.Recipients)

	attempts := make([]domain.DispatchAttempt, 0, len(deliveries))
	for _, dv := range deliveries {
		channelPayload := payload
		// A per-channel override replaces the rule's policy for that
		// channel only; the base payload stays untouched.
		if override, ok := rule.Recipients.Overrides[dv.channel]; ok {
			channelPayload = override.Apply(domain.PayloadFromFinding(f))
			channelPayload["rule"] = rule.Name
		}
		attempt := d.deliver(ctx, f, rule, dv, channelPayload)
		if err := d.dispatches.RecordAttempt(ctx, attempt); err != nil {
			log.Printf("❌ recording dispatch attempt (%s/%s): %v", f.ID, rule.ID, err)
		}
		recordDispatch(attempt.Channel, attempt.Status)
		attempts = append(attempts, attempt)
	}

	d.audit.System(ctx, f.OrgID, domain.ActionSendAlert, map[string]any{
		"rule":       rule.Name,
		"finding_id": f.ID,
		"channels":   channelSummary(attempts),
	})
	if d.bus != nil {
		if err := d.bus.Publish("darkguard.alert.dispatched", attempts); err != nil {
			log.Printf("⚠️  alert event publish failed: %v", err)
		}
	}

	return attempts, nil
}

// expandRecipients resolves the rule's recipient map into concrete
// deliveries. Integration-backed channels resolve to the tenant's
// active integration of that type at dispatch time.
func (d *Dispatcher) expandRecipients(ctx context.Context, orgID string, recipients domain.Recipients) []delivery {
	var deliveries []delivery

	direct := []struct {
		channel string
		targets []string
	}{
		{"email", recipients.Emails},
		{"webhook", recipients.Webhooks},
		{"sms", recipients.Phones},
	}
	for _, group := range direct {
		for _, target := range group.targets {
			deliveries = append(deliveries, d.resolve(group.channel, ports.ChannelConfig{Recipient: target}))
		}
	}

	for _, integrationType := range recipients.Integrations {
		integration, err := d.integrations.ActiveIntegrationByType(ctx, orgID, integrationType)
		if err != nil {
			deliveries = append(deliveries, delivery{
				channel:   integrationType,
				configErr: domain.RunStatusError(domain.ErrorConfig),
			})
			continue
		}
		deliveries = append(deliveries, d.resolve(integrationType, ports.ChannelConfig{
			Config:  integration.Config,
			Secrets: integration.Secrets,
		}))
	}

	return deliveries
}

func (d *Dispatcher) resolve(channelType string, cfg ports.ChannelConfig) delivery {
	adapter, ok := d.channels.Get(channelType)
	if !ok {
		return delivery{channel: channelType, cfg: cfg, configErr: domain.RunStatusError(domain.ErrorConfig)}
	}
	return delivery{channel: channelType, adapter: adapter, cfg: cfg}
}

// deliver runs one channel attempt to its terminal state. The recorded
// error is a classified status string; raw channel error detail goes
// to the operator log only.
func (d *Dispatcher) deliver(ctx context.Context, f domain.Finding, rule domain.AlertRule, dv delivery, payload map[string]any) domain.DispatchAttempt {
	attempt := domain.DispatchAttempt{
		ID:        uuid.NewString(),
		OrgID:     f.OrgID,
		FindingID: f.ID,
		RuleID:    rule.ID,
		Channel:   dv.channel,
		Recipient: dv.cfg.Recipient,
		CreatedAt: time.Now().UTC(),
	}

	if dv.configErr != "" {
		attempt.Status = domain.DispatchStatusFailed
		attempt.Error = dv.configErr
		return attempt
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = d.retry.InitialInterval
	expo.MaxInterval = d.retry.MaxInterval
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(d.retry.MaxAttempts-1)), ctx)

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.retry.CallTimeout)
		defer cancel()

		attempt.Attempts++
		err := dv.adapter.Send(callCtx, payload, dv.cfg)
		if errors.Is(err, ports.ErrChannelConfig) {
			// Missing channel settings cannot heal between attempts.
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		log.Printf("❌ %s delivery for rule %q failed: %v", dv.channel, rule.Name, err)
		attempt.Status = domain.DispatchStatusFailed
		if errors.Is(err, ports.ErrChannelConfig) {
			attempt.Error = domain.RunStatusError(domain.ErrorConfig)
		} else {
			attempt.Error = domain.RunStatusError(domain.ErrorTransient)
		}
		return attempt
	}

	attempt.Status = domain.DispatchStatusSent
	return attempt
}

func channelSummary(attempts []domain.DispatchAttempt) map[string]string {
	summary := make(map[string]string, len(attempts))
	for _, a := range attempts {
		key := a.Channel
		if a.Recipient != "" {
			key = a.Channel + ":" + a.Recipient
		}
		summary[key] = a.Status
	}
	return summary
}
