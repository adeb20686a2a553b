package postgres

import (
	"context"
	"time"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/repository"
)

const sanctionColumns = `id, patron_id, loan_id, kind, amount_cents, status, valid_from, valid_until,
	COALESCE(notes, ''), resolved_at, created_at`

type sanctionRepository struct {
	db DBTX
}

func NewSanctionRepository(db DBTX) repository.SanctionRepository {
	return &sanctionRepository{db: db}
}

func scanSanction(row rowScanner) (*domain.Sanction, error) {
	s := &domain.Sanction{}
	err := row.Scan(&s.ID, &s.PatronID, &s.LoanID, &s.Kind, &s.AmountCents, &s.Status,
		&s.ValidFrom, &s.ValidUntil, &s.Notes, &s.ResolvedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sanctionRepository) Create(ctx context.Context, s *domain.Sanction) error {
	logger.EnterMethod("sanctionRepository.Create", "patronID", s.PatronID, "kind", s.Kind)

	query := `
		INSERT INTO sanctions (patron_id, loan_id, kind, amount_cents, status, valid_from, valid_until, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		s.PatronID, s.LoanID, s.Kind, s.AmountCents, s.Status, s.ValidFrom, s.ValidUntil, s.Notes, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		logger.ExitMethodWithError("sanctionRepository.Create", err, "patronID", s.PatronID)
		return mapError("create sanction", err)
	}

	logger.ExitMethod("sanctionRepository.Create", "sanctionID", s.ID)
	return nil
}

func (r *sanctionRepository) GetByID(ctx context.Context, id int32) (*domain.Sanction, error) {
	s, err := scanSanction(r.db.QueryRowContext(ctx, `SELECT `+sanctionColumns+` FROM sanctions WHERE id = $1`, id))
	if err != nil {
		return nil, mapGetError("get sanction", "sanction", id, err)
	}
	return s, nil
}

func (r *sanctionRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Sanction, error) {
	s, err := scanSanction(r.db.QueryRowContext(ctx, `SELECT `+sanctionColumns+` FROM sanctions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapGetError("lock sanction", "sanction", id, err)
	}
	return s, nil
}

func (r *sanctionRepository) Update(ctx context.Context, s *domain.Sanction) error {
	query := `UPDATE sanctions SET status = $1, notes = $2, resolved_at = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, s.Status, s.Notes, s.ResolvedAt, s.ID)
	if err != nil {
		return mapError("update sanction", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewNotFoundError("update sanction", "sanction", s.ID)
	}
	return nil
}

func (r *sanctionRepository) HasActive(ctx context.Context, patronID int32, asOf time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sanctions
			WHERE patron_id = $1 AND status = 'active'
			  AND valid_from <= $2 AND (valid_until IS NULL OR valid_until >= $2)
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, patronID, domain.DateOf(asOf)).Scan(&exists); err != nil {
		return false, mapError("check active sanctions", err)
	}
	return exists, nil
}

func (r *sanctionRepository) ListByPatron(ctx context.Context, patronID int32) ([]domain.Sanction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sanctionColumns+` FROM sanctions WHERE patron_id = $1 ORDER BY created_at DESC, id DESC`, patronID)
	if err != nil {
		return nil, mapError("list sanctions", err)
	}
	defer rows.Close()

	var sanctions []domain.Sanction
	for rows.Next() {
		s, err := scanSanction(rows)
		if err != nil {
			return nil, mapError("list sanctions", err)
		}
		sanctions = append(sanctions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list sanctions", err)
	}
	return sanctions, nil
}
