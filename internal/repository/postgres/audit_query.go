package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the postgres dialect
	"github.com/jmoiron/sqlx"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/repository"
)

const (
	dialectPostgres   = "postgres"
	tableAuditLog     = "audit_log"
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type auditRow struct {
	ID         int64         `db:"id"`
	ActorID    sql.NullInt32 `db:"actor_id"`
	Action     string        `db:"action"`
	EntityType string        `db:"entity_type"`
	EntityID   string        `db:"entity_id"`
	Before     []byte        `db:"before"`
	After      []byte        `db:"after"`
	IPAddress  string        `db:"ip_address"`
	UserAgent  string        `db:"user_agent"`
	RequestID  string        `db:"request_id"`
	CreatedAt  time.Time     `db:"created_at"`
}

func (r auditRow) toDomain() domain.AuditEntry {
	e := domain.AuditEntry{
		ID:         r.ID,
		Action:     domain.AuditAction(r.Action),
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		IPAddress:  r.IPAddress,
		UserAgent:  r.UserAgent,
		RequestID:  r.RequestID,
		CreatedAt:  r.CreatedAt,
	}
	if r.ActorID.Valid {
		id := r.ActorID.Int32
		e.ActorID = &id
	}
	if len(r.Before) > 0 {
		e.Before = json.RawMessage(r.Before)
	}
	if len(r.After) > 0 {
		e.After = json.RawMessage(r.After)
	}
	return e
}

type auditQueryRepository struct {
	db *sqlx.DB
}

func NewAuditQueryRepository(db *sqlx.DB) repository.AuditQueryRepository {
	return &auditQueryRepository{db: db}
}

// buildAuditQuery renders the filtered, newest-first audit query as a prepared statement.
func buildAuditQuery(f domain.AuditFilter) (string, []any, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	ds := goqu.Dialect(dialectPostgres).
		From(tableAuditLog).
		Select("id", "actor_id", "action", "entity_type", "entity_id", "before", "after",
			"ip_address", "user_agent", "request_id", "created_at").
		Prepared(true)

	if f.ActorID != nil {
		ds = ds.Where(goqu.C("actor_id").Eq(*f.ActorID))
	}
	if f.EntityType != "" {
		ds = ds.Where(goqu.C("entity_type").Eq(f.EntityType))
	}
	if f.EntityID != "" {
		ds = ds.Where(goqu.C("entity_id").Eq(f.EntityID))
	}
	if f.From != nil {
		ds = ds.Where(goqu.C("created_at").Gte(*f.From))
	}
	if f.To != nil {
		ds = ds.Where(goqu.C("created_at").Lt(*f.To))
	}

	return ds.
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		ToSQL()
}

func (r *auditQueryRepository) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	query, args, err := buildAuditQuery(f)
	if err != nil {
		return nil, domain.NewPersistenceError("build audit query", err)
	}

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError("list audit entries", err)
	}

	entries := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}
