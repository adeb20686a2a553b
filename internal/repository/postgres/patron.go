package postgres

import (
	"context"
	"time"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/repository"
)

const patronColumns = `id, name, national_id, birth_date, phone, address, email, created_at`

type patronRepository struct {
	db DBTX
}

func NewPatronRepository(db DBTX) repository.PatronRepository {
	return &patronRepository{db: db}
}

func scanPatron(row rowScanner) (*domain.Patron, error) {
	p := &domain.Patron{}
	if err := row.Scan(&p.ID, &p.Name, &p.NationalID, &p.BirthDate, &p.Phone, &p.Address, &p.Email, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *patronRepository) Create(ctx context.Context, p *domain.Patron) error {
	query := `INSERT INTO patrons (name, national_id, birth_date, phone, address, email, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	p.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query, p.Name, p.NationalID, p.BirthDate, p.Phone, p.Address, p.Email, p.CreatedAt).Scan(&p.ID)
	return mapError("create patron", err)
}

func (r *patronRepository) GetByID(ctx context.Context, id int32) (*domain.Patron, error) {
	p, err := scanPatron(r.db.QueryRowContext(ctx, `SELECT `+patronColumns+` FROM patrons WHERE id = $1`, id))
	if err != nil {
		return nil, mapGetError("get patron", "patron", id, err)
	}
	return p, nil
}

func (r *patronRepository) GetByNationalID(ctx context.Context, nationalID string) (*domain.Patron, error) {
	p, err := scanPatron(r.db.QueryRowContext(ctx, `SELECT `+patronColumns+` FROM patrons WHERE national_id = $1`, nationalID))
	if err != nil {
		return nil, mapGetError("get patron by national id", "patron", nationalID, err)
	}
	return p, nil
}
