package service

import (
	"context"
	"encoding/json"
	"time"

	jsoniter "github.com/json-iterator/go"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/repository"
)

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditRecorder turns a change into a persisted AuditEntry. It is called
// explicitly from each mutation path with the transaction's audit writer.
type AuditRecorder struct {
	mode domain.AuditMode
	now  func() time.Time
}

// NewAuditRecorder returns a recorder for the given failure policy. A nil
// clock means time.Now.
func NewAuditRecorder(mode domain.AuditMode, now func() time.Time) *AuditRecorder {
	if mode == "" {
		mode = domain.AuditModeBestEffort
	}
	if now == nil {
		now = time.Now
	}
	return &AuditRecorder{mode: mode, now: now}
}

func (r *AuditRecorder) Mode() domain.AuditMode {
	return r.mode
}

// Record persists one entry for change. Before and After are serialized
// immediately so later mutation of the source values cannot alter history.
//
// In strict mode any failure comes back as a PersistenceError and the caller's
// transaction rolls back. In best-effort mode the failure is logged and nil is returned.
func (r *AuditRecorder) Record(ctx context.Context, w repository.AuditRepository, change domain.AuditChange) error {
	entry, err := r.entryFor(change)
	if err == nil {
		if r.mode == domain.AuditModeBestEffort {
			err = w.CreateIsolated(ctx, entry)
		} else {
			err = w.Create(ctx, entry)
		}
	}
	if err == nil {
		return nil
	}

	if r.mode == domain.AuditModeBestEffort {
		logger.WithActor(change.Actor.UserID, string(change.Actor.Role), change.Actor.RequestID).ErrorContext(ctx,
			"Audit entry lost; mutation committed without it",
			"action", change.Action,
			"entity_type", change.EntityType,
			"entity_id", change.EntityID,
			"ip_address", change.Actor.IPAddress,
			"error", err,
		)
		return nil
	}
	return &domain.Error{Kind: domain.KindPersistence, Op: "record audit", Message: "audit write failed", Err: err}
}

func (r *AuditRecorder) entryFor(c domain.AuditChange) (*domain.AuditEntry, error) {
	before, err := snapshot(c.Before)
	if err != nil {
		return nil, err
	}
	after, err := snapshot(c.After)
	if err != nil {
		return nil, err
	}
	return &domain.AuditEntry{
		ActorID:    c.Actor.UserID,
		Action:     c.Action,
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		Before:     before,
		After:      after,
		IPAddress:  c.Actor.IPAddress,
		UserAgent:  c.Actor.UserAgent,
		RequestID:  c.Actor.RequestID,
		CreatedAt:  r.now().UTC(),
	}, nil
}

// snapshot returns nil for absent values, including typed nil pointers.
func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := snapshotJSON.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return json.RawMessage(b), nil
}

type auditService struct {
	auditRepo repository.AuditQueryRepository
}

func NewAuditService(auditRepo repository.AuditQueryRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

func (s *auditService) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, domain.NewValidationError("list audit entries", "from must not be after to")
	}
	return s.auditRepo.List(ctx, filter)
}
