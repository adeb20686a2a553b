package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/repository"
)

var itemRowColumns = []string{"id", "title", "barcode", "availability", "replacement_cost_cents", "created_at", "updated_at"}

func TestItemRepository_GetForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewItemRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Locks the row", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM items WHERE id = \$1 FOR UPDATE`).
			WithArgs(int32(7)).
			WillReturnRows(sqlmock.NewRows(itemRowColumns).AddRow(7, "Atlas", "LIB-0007", "available", 3900, now, now))

		item, err := repo.GetForUpdate(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "LIB-0007", item.Barcode)
		assert.Equal(t, domain.ItemAvailable, item.Availability)
		assert.Equal(t, int32(3900), item.ReplacementCostCents)
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM items WHERE id = \$1 FOR UPDATE`).
			WithArgs(int32(404)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetForUpdate(ctx, 404)
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	t.Run("Lock timeout", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM items WHERE id = \$1 FOR UPDATE`).
			WithArgs(int32(7)).
			WillReturnError(&pq.Error{Code: "55P03"})

		_, err := repo.GetForUpdate(ctx, 7)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	})

	t.Run("Serialization failure via pgx", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM items WHERE id = \$1 FOR UPDATE`).
			WithArgs(int32(7)).
			WillReturnError(&pgconn.PgError{Code: "40001"})

		_, err := repo.GetForUpdate(ctx, 7)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

// A request that loses the race passes the count check inside its own
// snapshot and is stopped by the partial unique index on insert.
func TestStore_WithinTx_LockedRequestLosesToUniqueIndex(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM items WHERE id = \$1 FOR UPDATE`).
		WithArgs(int32(1)).
		WillReturnRows(sqlmock.NewRows(itemRowColumns).AddRow(1, "Atlas", "LIB-0001", "available", 3900, now, now))
	mock.ExpectQuery(`SELECT count\(\*\) FROM loans WHERE item_id = \$1`).
		WithArgs(int32(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO loans").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "loans_one_unresolved_per_item"})
	mock.ExpectRollback()

	err = store.WithinTx(ctx, func(repos repository.Repositories) error {
		item, err := repos.Items.GetForUpdate(ctx, 1)
		if err != nil {
			return err
		}
		n, err := repos.Loans.CountUnresolvedByItem(ctx, item.ID)
		if err != nil {
			return err
		}
		require.Zero(t, n)
		return repos.Loans.Create(ctx, domain.NewLoan(domain.LoanRequest{
			ItemID:    item.ID,
			Requester: domain.RequesterSnapshot{Name: "Walk In", NationalID: "X1"},
			StartDate: now,
			DueDate:   now.AddDate(0, 0, 14),
			LoanType:  domain.LoanTypeHome,
			Consent:   true,
		}, nil, now))
	})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
