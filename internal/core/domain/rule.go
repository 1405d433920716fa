package domain

import (
	"strings"
	"time"
)

// RuleFilters is the explicit form of a rule's filter criteria. Each
// dimension is a set; an empty set means "no constraint on this
// dimension", never "rejects everything". A finding matches when every
// non-empty dimension intersects the finding's corresponding value.
type RuleFilters struct {
	Severities      []string `json:"severity,omitempty"`
	ExposureTypes   []string `json:"exposure_types,omitempty"`
	MatchedEntities []string `json:"matched_entities,omitempty"`
	Sources         []string `json:"sources,omitempty"`
}

// Recipients maps channel kinds to their targets. Emails, webhooks and
// phones are addressed directly; Integrations lists integration types
// (jira, o365, trellix, webhook) resolved to the tenant's active
// integration at dispatch time. Overrides lets a channel carry a
// stricter redaction policy than the rule's default, keyed by channel
// type; an override replaces the rule policy for that channel.
type Recipients struct {
	Emails       []string                   `json:"emails,omitempty"`
	Webhooks     []string                   `json:"webhooks,omitempty"`
	Phones       []string                   `json:"phones,omitempty"`
	Integrations []string                   `json:"integrations,omitempty"`
	Overrides    map[string]RedactionPolicy `json:"overrides,omitempty"`
}

// AlertRule is a tenant notification policy. Schedule is a five-field
// cron expression governing the batch sweep cadence only; it never
// suppresses event-driven matches.
type AlertRule struct {
	ID              string          `json:"id"`
	OrgID           string          `json:"-"`
	Name            string          `json:"name"`
	IsActive        bool            `json:"is_active"`
	Filters         RuleFilters     `json:"filters"`
	RedactionPolicy RedactionPolicy `json:"redaction_policy"`
	Recipients      Recipients      `json:"recipients"`
	Schedule        string          `json:"schedule"`
	LastSweepAt     time.Time       `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Matches reports whether the rule's filters accept the finding.
// Inactive rules never match. Comparison is case-insensitive; AND
// across dimensions, OR within a dimension's set.
func (r AlertRule) Matches(f Finding) bool {
	if !r.IsActive {
		return false
	}
	if len(r.Filters.Severities) > 0 && !containsFold(r.Filters.Severities, string(f.Severity)) {
		return false
	}
	if len(r.Filters.ExposureTypes) > 0 && !intersectsFold(r.Filters.ExposureTypes, f.ExposureTypes) {
		return false
	}
	if len(r.Filters.MatchedEntities) > 0 && !containsFold(r.Filters.MatchedEntities, f.MatchedEntity) {
		return false
	}
	if len(r.Filters.Sources) > 0 && !containsFold(r.Filters.Sources, f.Source) {
		return false
	}
	return true
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

func intersectsFold(set, values []string) bool {
	for _, v := range values {
		if containsFold(set, v) {
			return true
		}
	}
	return false
}

// ParseRuleFilters converts the loose external filter representation
// (a JSON object of string lists) into the explicit form. Unknown keys
// are ignored; this is the only place the loose shape is handled.
func ParseRuleFilters(raw map[string]any) RuleFilters {
	return RuleFilters{
		Severities:      stringList(raw["severity"]),
		ExposureTypes:   stringList(raw["exposure_types"]),
		MatchedEntities: stringList(raw["matched_entities"]),
		Sources:         stringList(raw["sources"]),
	}
}

// ParseRecipients converts the loose recipients map into the explicit
// multi-channel form.
func ParseRecipients(raw map[string]any) Recipients {
	recipients := Recipients{
		Emails:       stringList(raw["emails"]),
		Webhooks:     stringList(raw["webhooks"]),
		Phones:       stringList(raw["phones"]),
		Integrations: stringList(raw["integrations"]),
	}
	if overrides, ok := raw["overrides"].(map[string]any); ok {
		recipients.Overrides = make(map[string]RedactionPolicy, len(overrides))
		for channel, policy := range overrides {
			if p, ok := policy.(map[string]any); ok {
				recipients.Overrides[channel] = ParseRedactionPolicy(p)
			}
		}
	}
	return recipients
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		var out []string
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
