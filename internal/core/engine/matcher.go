package engine

import (
	"context"
	"log"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// Match returns the rules whose filters accept the finding. Pure and
// idempotent: the same (finding, rules) input always yields the same
// verdict. Inactive rules never match.
func Match(f domain.Finding, rules []domain.AlertRule) []domain.AlertRule {
	var matched []domain.AlertRule
	for _, rule := range rules {
		if rule.OrgID != f.OrgID {
			continue
		}
		if rule.Matches(f) {
			matched = append(matched, rule)
		}
	}
	return matched
}

// Matcher drives the event-driven matching path: each accepted finding
// is evaluated against the organization's active rules immediately
// after the store accepts it. Re-evaluation cannot re-trigger dispatch
// because the dispatcher claims the (finding, rule) key atomically.
type Matcher struct {
	rules      ports.AlertRuleRepository
	dispatcher *Dispatcher
}

func NewMatcher(rules ports.AlertRuleRepository, dispatcher *Dispatcher) *Matcher {
	return &Matcher{rules: rules, dispatcher: dispatcher}
}

func (m *Matcher) OnFinding(ctx context.Context, f domain.Finding) error {
	rules, err := m.rules.ListActiveRules(ctx, f.OrgID)
	if err != nil {
		return err
	}
	for _, rule := range Match(f, rules) {
		if _, err := m.dispatcher.DispatchMatch(ctx, f, rule); err != nil {
			log.Printf("⚠️  dispatch for rule %q finding %s: %v", rule.Name, f.ID, err)
		}
	}
	return nil
}
