package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"municipal-library-backend/internal/domain"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeLockNotAvailable     = "55P03"
)

// mapError converts driver errors into ledger errors. Both lib/pq and pgx
// report SQLSTATE codes; either driver may back the *sql.DB.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}

	code := ""
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	case errors.As(err, &pgErr):
		code = pgErr.Code
	}

	switch code {
	case codeUniqueViolation:
		return &domain.Error{Kind: domain.KindConflict, Op: op, Message: "conflicting record exists", Err: err}
	case codeSerializationFailure, codeLockNotAvailable:
		return &domain.Error{Kind: domain.KindConflict, Op: op, Message: "concurrent update", Err: err}
	}
	return domain.NewPersistenceError(op, err)
}

// mapGetError is mapError plus sql.ErrNoRows -> NotFound.
func mapGetError(op, entity string, id any, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError(op, entity, id)
	}
	return mapError(op, err)
}
