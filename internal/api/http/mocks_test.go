package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"municipal-library-backend/internal/domain"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) loan(args mock.Arguments) (*domain.Loan, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) RequestLoan(ctx context.Context, actor domain.Actor, req domain.LoanRequest) (*domain.Loan, error) {
	return m.loan(m.Called(ctx, actor, req))
}

func (m *MockLoanService) Approve(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error) {
	return m.loan(m.Called(ctx, actor, loanID))
}

func (m *MockLoanService) MarkActive(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error) {
	return m.loan(m.Called(ctx, actor, loanID))
}

func (m *MockLoanService) Reject(ctx context.Context, actor domain.Actor, loanID int32, reason string) (*domain.Loan, error) {
	return m.loan(m.Called(ctx, actor, loanID, reason))
}

func (m *MockLoanService) Cancel(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error) {
	return m.loan(m.Called(ctx, actor, loanID))
}

func (m *MockLoanService) MarkReturned(ctx context.Context, actor domain.Actor, loanID int32, returnDate time.Time) (*domain.Loan, error) {
	return m.loan(m.Called(ctx, actor, loanID, returnDate))
}

func (m *MockLoanService) MarkLost(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error) {
	return m.loan(m.Called(ctx, actor, loanID))
}

func (m *MockLoanService) RecomputeOverdue(ctx context.Context, loanID int32, asOf time.Time) (int32, error) {
	args := m.Called(ctx, loanID, asOf)
	return args.Get(0).(int32), args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID int32, asOf time.Time) (*domain.Loan, error) {
	return m.loan(m.Called(ctx, loanID, asOf))
}

func (m *MockLoanService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, int32, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int32), args.Error(2)
	}
	return args.Get(0).([]domain.Loan), args.Get(1).(int32), args.Error(2)
}

type MockItemService struct {
	mock.Mock
}

func (m *MockItemService) CreateItem(ctx context.Context, actor domain.Actor, item *domain.Item) error {
	args := m.Called(ctx, actor, item)
	return args.Error(0)
}

func (m *MockItemService) GetItem(ctx context.Context, id int32) (*domain.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

func (m *MockItemService) ListItems(ctx context.Context, page, pageSize int32) ([]domain.Item, int32, error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).([]domain.Item), args.Get(1).(int32), args.Error(2)
}

type MockSanctionService struct {
	mock.Mock
}

func (m *MockSanctionService) ListByPatron(ctx context.Context, patronID int32) ([]domain.Sanction, error) {
	args := m.Called(ctx, patronID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Sanction), args.Error(1)
}

func (m *MockSanctionService) Fulfill(ctx context.Context, actor domain.Actor, sanctionID int32, notes string) (*domain.Sanction, error) {
	args := m.Called(ctx, actor, sanctionID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Sanction), args.Error(1)
}

func (m *MockSanctionService) Forgive(ctx context.Context, actor domain.Actor, sanctionID int32, notes string) (*domain.Sanction, error) {
	args := m.Called(ctx, actor, sanctionID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Sanction), args.Error(1)
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditEntry), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*domain.User, string, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, "", "", args.Error(3)
	}
	return args.Get(0).(*domain.User), args.String(1), args.String(2), args.Error(3)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refresh string) (string, string, error) {
	args := m.Called(ctx, refresh)
	return args.String(0), args.String(1), args.Error(2)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}
