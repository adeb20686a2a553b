package postgres

import (
	"context"
	"errors"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/repository"
)

type auditRepository struct {
	db DBTX
}

func NewAuditRepository(db DBTX) repository.AuditRepository {
	return &auditRepository{db: db}
}

// jsonbArg passes serialized JSON as text so the driver binds it to jsonb
// rather than bytea. Empty snapshots are stored as NULL.
func jsonbArg(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func (r *auditRepository) Create(ctx context.Context, e *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (actor_id, action, entity_type, entity_id, before, after, ip_address, user_agent, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		e.ActorID, e.Action, e.EntityType, e.EntityID, jsonbArg(e.Before), jsonbArg(e.After),
		e.IPAddress, e.UserAgent, e.RequestID, e.CreatedAt,
	).Scan(&e.ID)
	return mapError("write audit entry", err)
}

// CreateIsolated wraps the insert in a savepoint. A failed insert is rolled
// back to the savepoint and the enclosing transaction stays usable.
func (r *auditRepository) CreateIsolated(ctx context.Context, e *domain.AuditEntry) error {
	if _, err := r.db.ExecContext(ctx, `SAVEPOINT audit_entry`); err != nil {
		return mapError("write audit entry", err)
	}
	if err := r.Create(ctx, e); err != nil {
		if _, rbErr := r.db.ExecContext(ctx, `ROLLBACK TO SAVEPOINT audit_entry`); rbErr != nil {
			return mapError("write audit entry", errors.Join(err, rbErr))
		}
		return err
	}
	if _, err := r.db.ExecContext(ctx, `RELEASE SAVEPOINT audit_entry`); err != nil {
		return mapError("write audit entry", err)
	}
	return nil
}
