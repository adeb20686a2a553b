package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"municipal-library-backend/internal/config"
	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/testutil"
)

type mockEmailService struct {
	mock.Mock
}

func (m *mockEmailService) SendLoanStatusNotification(ctx context.Context, email, name, itemTitle string, status domain.LoanStatus, note string) error {
	return m.Called(ctx, email, name, itemTitle, status, note).Error(0)
}

func (m *mockEmailService) SendSanctionNotification(ctx context.Context, email, name string, sanction *domain.Sanction) error {
	return m.Called(ctx, email, name, sanction).Error(0)
}

func (m *mockEmailService) SendOverdueReminder(ctx context.Context, email, name, itemTitle string, dueDate time.Time, daysOverdue int32) error {
	return m.Called(ctx, email, name, itemTitle, dueDate, daysOverdue).Error(0)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type jobsFixture struct {
	store *testutil.MemStore
	email *mockEmailService
	jr    *JobRunner
	// loans keyed by scenario
	overdue, walkIn, noEmail, onTime *domain.Loan
}

func newJobsFixture(t *testing.T) *jobsFixture {
	t.Helper()
	clock := testutil.Date(2024, 1, 20)
	store := testutil.NewMemStore(clock.Now)
	email := new(mockEmailService)

	item := store.AddItem(domain.Item{Title: "El Aleph", Barcode: "LIB-0200"})
	other := store.AddItem(domain.Item{Title: "Ficciones", Barcode: "LIB-0201"})
	third := store.AddItem(domain.Item{Title: "Rayuela", Barcode: "LIB-0202"})
	fourth := store.AddItem(domain.Item{Title: "Pedro Páramo", Barcode: "LIB-0203"})
	marta := store.AddPatron(domain.Patron{Name: "Marta Díaz", Email: "marta@example.test"})
	silent := store.AddPatron(domain.Patron{Name: "Luis Ortega"})

	active := func(itemID int32, patronID *int32, due time.Time) *domain.Loan {
		return store.AddLoan(domain.Loan{
			ItemID: itemID, PatronID: patronID, Status: domain.LoanStatusActive,
			StartDate: day(2024, 1, 1), DueDate: due, LoanType: domain.LoanTypeHome, Consent: true,
		})
	}

	jr := NewJobRunner(store.Repositories(), email, config.SchedulerConfig{
		RefreshOverdueLoans:  "0 0 1 * * *",
		SendOverdueReminders: "0 0 9 * * *",
	})
	jr.now = clock.Now

	return &jobsFixture{
		store:   store,
		email:   email,
		jr:      jr,
		overdue: active(item.ID, &marta.ID, day(2024, 1, 15)),
		walkIn:  active(other.ID, nil, day(2024, 1, 10)),
		noEmail: active(third.ID, &silent.ID, day(2024, 1, 12)),
		onTime:  active(fourth.ID, &marta.ID, day(2024, 1, 20)),
	}
}

func TestRefreshOverdueLoans(t *testing.T) {
	f := newJobsFixture(t)

	require.NoError(t, f.jr.RefreshOverdueLoans())

	assert.Equal(t, int32(5), f.store.Loan(f.overdue.ID).DaysOverdue)
	assert.Equal(t, int32(10), f.store.Loan(f.walkIn.ID).DaysOverdue)
	assert.Equal(t, int32(0), f.store.Loan(f.onTime.ID).DaysOverdue)
	assert.Empty(t, f.store.AuditEntries())

	t.Run("Storage failure", func(t *testing.T) {
		f.store.FailOn("loans.RefreshDaysOverdue", testutil.ErrInjected)
		err := f.jr.RefreshOverdueLoans()
		assert.True(t, errors.Is(err, testutil.ErrInjected))
	})
}

func TestSendOverdueReminders(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newJobsFixture(t)
		f.email.On("SendOverdueReminder", mock.Anything, "marta@example.test", "Marta Díaz", "El Aleph", day(2024, 1, 15), int32(5)).
			Return(nil).Once()

		require.NoError(t, f.jr.SendOverdueReminders())
		f.email.AssertExpectations(t)
		f.email.AssertNumberOfCalls(t, "SendOverdueReminder", 1)
	})

	t.Run("Email failure does not fail the job", func(t *testing.T) {
		f := newJobsFixture(t)
		f.email.On("SendOverdueReminder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("smtp down"))

		assert.NoError(t, f.jr.SendOverdueReminders())
	})

	t.Run("List failure", func(t *testing.T) {
		f := newJobsFixture(t)
		f.store.FailOn("loans.ListOverdue", testutil.ErrInjected)

		assert.Error(t, f.jr.SendOverdueReminders())
		f.email.AssertNotCalled(t, "SendOverdueReminder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRunWithRecovery(t *testing.T) {
	f := newJobsFixture(t)

	err := f.jr.runWithRecovery("panicky", func(ctx context.Context) error {
		panic("boom")
	})
	assert.NoError(t, err)

	err = f.jr.runWithRecovery("failing", func(ctx context.Context) error {
		return errors.New("nope")
	})
	assert.EqualError(t, err, "nope")
}
