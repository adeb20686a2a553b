package service_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/security"
)

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendLoanStatusNotification(ctx context.Context, email, name, itemTitle string, status domain.LoanStatus, note string) error {
	args := m.Called(ctx, email, name, itemTitle, status, note)
	return args.Error(0)
}

func (m *MockEmailService) SendSanctionNotification(ctx context.Context, email, name string, sanction *domain.Sanction) error {
	args := m.Called(ctx, email, name, sanction)
	return args.Error(0)
}

func (m *MockEmailService) SendOverdueReminder(ctx context.Context, email, name, itemTitle string, dueDate time.Time, daysOverdue int32) error {
	args := m.Called(ctx, email, name, itemTitle, dueDate, daysOverdue)
	return args.Error(0)
}

// MockTokenManager
type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) GenerateAccessToken(user *domain.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *MockTokenManager) GenerateRefreshToken(user *domain.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *MockTokenManager) ValidateToken(tokenString string) (*security.UserClaims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*security.UserClaims), args.Error(1)
}
