package repository

import (
	"context"
	"time"

	"municipal-library-backend/internal/domain"
)

type LoanRepository interface {
	Create(ctx context.Context, loan *domain.Loan) error
	GetByID(ctx context.Context, id int32) (*domain.Loan, error)
	// GetForUpdate reads the loan and holds its row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id int32) (*domain.Loan, error)
	Update(ctx context.Context, loan *domain.Loan) error
	CountUnresolvedByItem(ctx context.Context, itemID int32) (int32, error)
	List(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, int32, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Loan, error)
	// RefreshDaysOverdue recomputes the cached days_overdue column of active loans.
	RefreshDaysOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id int32) (*domain.Item, error)
	GetForUpdate(ctx context.Context, id int32) (*domain.Item, error)
	List(ctx context.Context, page, pageSize int32) ([]domain.Item, int32, error)
	UpdateAvailability(ctx context.Context, id int32, availability domain.ItemAvailability) error
}

type PatronRepository interface {
	Create(ctx context.Context, patron *domain.Patron) error
	GetByID(ctx context.Context, id int32) (*domain.Patron, error)
	GetByNationalID(ctx context.Context, nationalID string) (*domain.Patron, error)
}

type SanctionRepository interface {
	Create(ctx context.Context, s *domain.Sanction) error
	GetByID(ctx context.Context, id int32) (*domain.Sanction, error)
	GetForUpdate(ctx context.Context, id int32) (*domain.Sanction, error)
	Update(ctx context.Context, s *domain.Sanction) error
	// HasActive reports whether the patron has a sanction in force on asOf.
	HasActive(ctx context.Context, patronID int32, asOf time.Time) (bool, error)
	ListByPatron(ctx context.Context, patronID int32) ([]domain.Sanction, error)
}

type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	// CreateIsolated writes the entry so that its failure leaves the
	// surrounding transaction usable.
	CreateIsolated(ctx context.Context, entry *domain.AuditEntry) error
}

type AuditQueryRepository interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Repositories groups the repositories bound to one transaction.
type Repositories struct {
	Loans     LoanRepository
	Items     ItemRepository
	Patrons   PatronRepository
	Sanctions SanctionRepository
	Audit     AuditRepository
	Users     UserRepository
}

// UnitOfWork runs fn inside a single transaction. fn's error rolls
// everything back; a nil return commits.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
