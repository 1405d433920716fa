package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// AuditRecorder appends an immutable entry for every engine state
// change. Audit persistence is best-effort relative to primary-state
// correctness: a failed append is logged to the operator error channel
// and never fails the triggering operation.
type AuditRecorder struct {
	repo ports.AuditRepository
}

func NewAuditRecorder(repo ports.AuditRepository) *AuditRecorder {
	return &AuditRecorder{repo: repo}
}

func (a *AuditRecorder) Record(ctx context.Context, orgID string, action domain.AuditAction, actorID string, payload map[string]any) {
	if a == nil || a.repo == nil {
		return
	}
	entry := domain.AuditEntry{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Action:    action,
		ActorID:   actorID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := a.repo.Append(ctx, entry); err != nil {
		log.Printf("⚠️  audit append failed (action=%s org=%s): %v", action, orgID, err)
	}
}

// System records an engine-initiated action.
func (a *AuditRecorder) System(ctx context.Context, orgID string, action domain.AuditAction, payload map[string]any) {
	a.Record(ctx, orgID, action, domain.SystemActor, payload)
}
