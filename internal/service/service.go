package service

import (
	"context"
	"time"

	"municipal-library-backend/internal/domain"
)

// LoanService drives the loan lifecycle. Every mutating call runs in one
// transaction together with its audit entries.
type LoanService interface {
	RequestLoan(ctx context.Context, actor domain.Actor, req domain.LoanRequest) (*domain.Loan, error)
	Approve(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error)
	MarkActive(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error)
	Reject(ctx context.Context, actor domain.Actor, loanID int32, reason string) (*domain.Loan, error)
	Cancel(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error)
	MarkReturned(ctx context.Context, actor domain.Actor, loanID int32, returnDate time.Time) (*domain.Loan, error)
	MarkLost(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error)
	RecomputeOverdue(ctx context.Context, loanID int32, asOf time.Time) (int32, error)
	GetLoan(ctx context.Context, loanID int32, asOf time.Time) (*domain.Loan, error)
	ListLoans(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, int32, error)
}

type ItemService interface {
	CreateItem(ctx context.Context, actor domain.Actor, item *domain.Item) error
	GetItem(ctx context.Context, id int32) (*domain.Item, error)
	ListItems(ctx context.Context, page, pageSize int32) ([]domain.Item, int32, error)
}

type SanctionService interface {
	ListByPatron(ctx context.Context, patronID int32) ([]domain.Sanction, error)
	Fulfill(ctx context.Context, actor domain.Actor, sanctionID int32, notes string) (*domain.Sanction, error)
	Forgive(ctx context.Context, actor domain.Actor, sanctionID int32, notes string) (*domain.Sanction, error)
}

type AuditService interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*domain.User, string, string, error) // user, access, refresh
	RefreshToken(ctx context.Context, refresh string) (string, string, error)
}

type EmailService interface {
	SendLoanStatusNotification(ctx context.Context, email, name, itemTitle string, status domain.LoanStatus, note string) error
	SendSanctionNotification(ctx context.Context, email, name string, sanction *domain.Sanction) error
	SendOverdueReminder(ctx context.Context, email, name, itemTitle string, dueDate time.Time, daysOverdue int32) error
}
