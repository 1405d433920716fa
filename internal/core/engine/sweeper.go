package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

const sweepBatchLimit = 500

// Sweeper drives the batch matching path: on each rule's cron cadence
// it re-evaluates findings created since the rule's last sweep. The
// sweep catches rules created or re-activated after their findings
// were ingested; overlap with the event-driven path is harmless
// because the dispatcher claims each (finding, rule) pair atomically.
// Schedules never suppress a match, only the sweep cadence.
type Sweeper struct {
	orgs       ports.OrganizationRepository
	rules      ports.AlertRuleRepository
	findings   ports.FindingRepository
	dispatcher *Dispatcher
	audit      *AuditRecorder
	interval   time.Duration
	parser     cron.Parser

	mu      sync.Mutex
	audited map[string]bool // rules with an already-audited bad schedule
}

func NewSweeper(
	orgs ports.OrganizationRepository,
	rules ports.AlertRuleRepository,
	findings ports.FindingRepository,
	dispatcher *Dispatcher,
	audit *AuditRecorder,
	interval time.Duration,
) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		orgs:       orgs,
		rules:      rules,
		findings:   findings,
		dispatcher: dispatcher,
		audit:      audit,
		interval:   interval,
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		audited:    make(map[string]bool),
	}
}

// Run loops until the context is cancelled, sweeping due rules on
// every tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(ctx, now.UTC())
		}
	}
}

// Sweep evaluates every due rule of every active organization. Work is
// partitioned per organization: a failing or slow tenant is logged and
// skipped, never starving the others.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	orgs, err := s.orgs.ListOrganizations(ctx)
	if err != nil {
		log.Printf("❌ sweep: listing organizations: %v", err)
		return
	}

	for _, org := range orgs {
		if !org.IsActive {
			continue
		}
		if err := s.sweepOrg(ctx, org, now); err != nil {
			log.Printf("⚠️  sweep org %s: %v", org.ID, err)
		}
	}
}

func (s *Sweeper) sweepOrg(ctx context.Context, org domain.Organization, now time.Time) error {
	rules, err := s.rules.ListActiveRules(ctx, org.ID)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		sched, err := s.parser.Parse(rule.Schedule)
		if err != nil {
			// Configuration error: the rule still fires on the event
			// path but is excluded from sweeps. Audited once.
			s.auditBadSchedule(ctx, rule)
			continue
		}

		last := rule.LastSweepAt
		if last.IsZero() {
			last = rule.CreatedAt
		}
		if sched.Next(last).After(now) {
			continue
		}

		findings, err := s.findings.FindingsSince(ctx, org.ID, last, sweepBatchLimit)
		if err != nil {
			return err
		}
		for _, f := range findings {
			if !rule.Matches(f) {
				continue
			}
			if _, err := s.dispatcher.DispatchMatch(ctx, f, rule); err != nil {
				log.Printf("⚠️  sweep dispatch rule %q finding %s: %v", rule.Name, f.ID, err)
			}
		}

		if err := s.rules.MarkSwept(ctx, org.ID, rule.ID, now); err != nil {
			log.Printf("⚠️  marking rule %q swept: %v", rule.Name, err)
		}
	}
	return nil
}

func (s *Sweeper) auditBadSchedule(ctx context.Context, rule domain.AlertRule) {
	s.mu.Lock()
	seen := s.audited[rule.ID]
	s.audited[rule.ID] = true
	s.mu.Unlock()
	if seen {
		return
	}
	s.audit.System(ctx, rule.OrgID, domain.ActionInvalidSchedule, map[string]any{
		"rule":     rule.Name,
		"schedule": rule.Schedule,
		"status":   domain.RunStatusError(domain.ErrorConfig),
	})
}
