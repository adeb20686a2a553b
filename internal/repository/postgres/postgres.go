package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/repository"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every repository can run
// either standalone or inside a unit of work.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects with the named driver ("postgres" for lib/pq, "pgx" for
// pgx's database/sql adapter) and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

type Store struct {
	db *sql.DB
	repository.LoanRepository
	repository.ItemRepository
	repository.PatronRepository
	repository.SanctionRepository
	repository.UserRepository
	repository.AuditQueryRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                   db,
		LoanRepository:       NewLoanRepository(db),
		ItemRepository:       NewItemRepository(db),
		PatronRepository:     NewPatronRepository(db),
		SanctionRepository:   NewSanctionRepository(db),
		UserRepository:       NewUserRepository(db),
		AuditQueryRepository: NewAuditQueryRepository(sqlx.NewDb(db, "postgres")),
	}
}

// Repositories returns repositories bound to the pool rather than a transaction.
func (s *Store) Repositories() repository.Repositories {
	return newRepositories(s.db)
}

func newRepositories(q DBTX) repository.Repositories {
	return repository.Repositories{
		Loans:     NewLoanRepository(q),
		Items:     NewItemRepository(q),
		Patrons:   NewPatronRepository(q),
		Sanctions: NewSanctionRepository(q),
		Audit:     NewAuditRepository(q),
		Users:     NewUserRepository(q),
	}
}

// WithinTx runs fn in a read-committed transaction. Row locks taken through
// GetForUpdate serialize concurrent transitions on the same loan or item.
func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewPersistenceError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(newRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Failed to roll back transaction", "error", rbErr, "cause", err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return mapError("commit transaction", err)
	}
	return nil
}

// Ping verifies the connection; used by the health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
