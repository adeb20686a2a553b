package postgres

import (
	"context"
	"time"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/repository"
)

const itemColumns = `id, title, barcode, availability, replacement_cost_cents, created_at, updated_at`

type itemRepository struct {
	db DBTX
}

func NewItemRepository(db DBTX) repository.ItemRepository {
	return &itemRepository{db: db}
}

func scanItem(row rowScanner) (*domain.Item, error) {
	i := &domain.Item{}
	if err := row.Scan(&i.ID, &i.Title, &i.Barcode, &i.Availability, &i.ReplacementCostCents, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return i, nil
}

func (r *itemRepository) Create(ctx context.Context, i *domain.Item) error {
	query := `INSERT INTO items (title, barcode, availability, replacement_cost_cents, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	now := time.Now().UTC()
	if i.Availability == "" {
		i.Availability = domain.ItemAvailable
	}
	i.CreatedAt, i.UpdatedAt = now, now
	err := r.db.QueryRowContext(ctx, query, i.Title, i.Barcode, i.Availability, i.ReplacementCostCents, i.CreatedAt, i.UpdatedAt).Scan(&i.ID)
	return mapError("create item", err)
}

func (r *itemRepository) GetByID(ctx context.Context, id int32) (*domain.Item, error) {
	i, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		return nil, mapGetError("get item", "item", id, err)
	}
	return i, nil
}

func (r *itemRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Item, error) {
	i, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapGetError("lock item", "item", id, err)
	}
	return i, nil
}

func (r *itemRepository) List(ctx context.Context, page, pageSize int32) ([]domain.Item, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var count int32
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM items`).Scan(&count); err != nil {
		return nil, 0, mapError("count items", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY title, id LIMIT $1 OFFSET $2`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, mapError("list items", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, 0, mapError("list items", err)
		}
		items = append(items, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError("list items", err)
	}
	return items, count, nil
}

func (r *itemRepository) UpdateAvailability(ctx context.Context, id int32, availability domain.ItemAvailability) error {
	res, err := r.db.ExecContext(ctx, `UPDATE items SET availability = $1, updated_at = $2 WHERE id = $3`, availability, time.Now().UTC(), id)
	if err != nil {
		return mapError("update item availability", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewNotFoundError("update item availability", "item", id)
	}
	return nil
}
