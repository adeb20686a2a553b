package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"municipal-library-backend/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"pq unique violation", &pq.Error{Code: "23505"}, domain.KindConflict},
		{"pgx unique violation", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"}), domain.KindConflict},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, domain.KindConflict},
		{"lock not available", &pq.Error{Code: "55P03"}, domain.KindConflict},
		{"other driver error", &pq.Error{Code: "22001"}, domain.KindPersistence},
		{"plain error", errors.New("connection reset"), domain.KindPersistence},
		{"domain error passes through", domain.NewNotFoundError("get loan", "loan", 1), domain.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("op", tt.err)
			assert.Equal(t, tt.want, domain.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, mapError("op", nil))
}

func TestMapGetError(t *testing.T) {
	err := mapGetError("get item", "item", int32(9), sql.ErrNoRows)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	err = mapGetError("get item", "item", int32(9), errors.New("timeout"))
	assert.Equal(t, domain.KindPersistence, domain.KindOf(err))
}
