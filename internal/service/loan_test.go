package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/service"
	"municipal-library-backend/internal/testutil"
)

var testPolicy = domain.LoanPolicy{MaxLoanDays: 30, SevereDelayDays: 15, FinePerDayCents: 50, DefaultLossAmountCents: 2500, SanctionDays: 30}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type loanFixture struct {
	store  *testutil.MemStore
	clock  *testutil.Clock
	email  *MockEmailService
	svc    service.LoanService
	staff  domain.Actor
	item   *domain.Item
	patron *domain.Patron
}

func newLoanFixture(t *testing.T, mode domain.AuditMode) *loanFixture {
	t.Helper()
	clock := testutil.Date(2024, 1, 1)
	store := testutil.NewMemStore(clock.Now)
	email := new(MockEmailService)
	email.On("SendLoanStatusNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	email.On("SendSanctionNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	staffID := int32(100)
	f := &loanFixture{
		store: store,
		clock: clock,
		email: email,
		svc: service.NewLoanService(store, store.Repositories().Loans, service.NewAuditRecorder(mode, clock.Now), testPolicy,
			service.WithClock(clock.Now), service.WithEmailService(email)),
		staff: domain.Actor{UserID: &staffID, Role: domain.UserRoleStaff, IPAddress: "10.0.0.5", UserAgent: "desk-terminal", RequestID: "req-1"},
		item:  store.AddItem(domain.Item{Title: "Cien años de soledad", Barcode: "LIB-0001", ReplacementCostCents: 3900}),
		patron: store.AddPatron(domain.Patron{
			Name: "Marta Díaz", NationalID: "40111222", Email: "marta@example.test", Phone: "555-0101",
		}),
	}
	return f
}

func (f *loanFixture) request() domain.LoanRequest {
	return domain.LoanRequest{
		ItemID:    f.item.ID,
		PatronID:  &f.patron.ID,
		StartDate: date(2024, 1, 1),
		DueDate:   date(2024, 1, 15),
		LoanType:  domain.LoanTypeHome,
		Consent:   true,
	}
}

func (f *loanFixture) activeLoan(t *testing.T) *domain.Loan {
	t.Helper()
	ctx := context.Background()
	loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.staff, loan.ID)
	require.NoError(t, err)
	loan, err = f.svc.MarkActive(ctx, f.staff, loan.ID)
	require.NoError(t, err)
	return loan
}

func entityIDOf(id int32) string {
	return strconv.FormatInt(int64(id), 10)
}

func decodeSnapshot(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	require.NotNil(t, raw)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestLoanService_RequestApproveActivate(t *testing.T) {
	f := newLoanFixture(t, domain.AuditModeStrict)
	ctx := context.Background()

	loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPending, loan.Status)
	assert.Equal(t, int32(14), loan.TotalDays)
	assert.Equal(t, "Marta Díaz", loan.Requester.Name)

	approved, err := f.svc.Approve(ctx, f.staff, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	active, err := f.svc.MarkActive(ctx, f.staff, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, active.Status)
	assert.Equal(t, f.staff.UserID, active.GrantedBy)
	assert.Equal(t, domain.ItemOnLoan, f.store.Item(f.item.ID).Availability)

	days, err := f.svc.RecomputeOverdue(ctx, loan.ID, date(2024, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, int32(0), days)

	days, err = f.svc.RecomputeOverdue(ctx, loan.ID, date(2024, 1, 16))
	require.NoError(t, err)
	assert.Equal(t, int32(1), days)

	t.Run("Recompute does not mutate", func(t *testing.T) {
		stored := f.store.Loan(loan.ID)
		assert.Equal(t, int32(0), stored.DaysOverdue)
		again, err := f.svc.RecomputeOverdue(ctx, loan.ID, date(2024, 1, 16))
		require.NoError(t, err)
		assert.Equal(t, int32(1), again)
	})

	t.Run("One audit entry per mutation", func(t *testing.T) {
		entries := f.store.AuditFor(domain.EntityLoan, entityIDOf(loan.ID))
		require.Len(t, entries, 3)
		assert.Equal(t, domain.AuditActionCreate, entries[0].Action)
		assert.Nil(t, entries[0].Before)
		assert.Equal(t, domain.AuditActionApproved, entries[1].Action)
		assert.Equal(t, domain.AuditActionLoaned, entries[2].Action)

		before := decodeSnapshot(t, entries[1].Before)
		after := decodeSnapshot(t, entries[1].After)
		assert.Equal(t, "pending", before["status"])
		assert.Equal(t, "approved", after["status"])

		for _, e := range entries {
			require.NotNil(t, e.ActorID)
			assert.Equal(t, int32(100), *e.ActorID)
			assert.Equal(t, "10.0.0.5", e.IPAddress)
			assert.Equal(t, "desk-terminal", e.UserAgent)
		}

		itemEntries := f.store.AuditFor(domain.EntityItem, entityIDOf(f.item.ID))
		require.Len(t, itemEntries, 1)
		assert.Equal(t, "on_loan", decodeSnapshot(t, itemEntries[0].After)["availability"])
	})
}

// The in-memory store serializes transactions, so this checks that racing
// requests resolve to one winner and conflicts, not row lock behaviour.
// Lock and unique index handling is covered in the postgres package.
func TestLoanService_ConcurrentRequestsAreSerialized(t *testing.T) {
	f := newLoanFixture(t, domain.AuditModeStrict)
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RequestLoan(ctx, f.staff, f.request())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, f.store.LoanCount())
}

func TestLoanService_RequestLoan_ItemAlreadyOut(t *testing.T) {
	f := newLoanFixture(t, domain.AuditModeStrict)
	f.activeLoan(t)

	_, err := f.svc.RequestLoan(context.Background(), f.staff, f.request())
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.Equal(t, 1, f.store.LoanCount())
}

func TestLoanService_RequestLoan_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("No consent", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		req := f.request()
		req.Consent = false
		_, err := f.svc.RequestLoan(ctx, f.staff, req)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		assert.Empty(t, f.store.AuditEntries())
	})

	t.Run("Due before start", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		req := f.request()
		req.DueDate = date(2023, 12, 31)
		_, err := f.svc.RequestLoan(ctx, f.staff, req)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("Active sanction", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		f.store.AddSanction(domain.Sanction{
			PatronID: f.patron.ID, Kind: domain.SanctionKindLoss, AmountCents: 1000,
			Status: domain.SanctionStatusActive, ValidFrom: date(2023, 12, 1),
		})
		_, err := f.svc.RequestLoan(ctx, f.staff, f.request())
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		assert.Equal(t, 0, f.store.LoanCount())
	})

	t.Run("Walk-in matching a sanctioned patron", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		f.store.AddSanction(domain.Sanction{
			PatronID: f.patron.ID, Kind: domain.SanctionKindSevereDelay, AmountCents: 800,
			Status: domain.SanctionStatusActive, ValidFrom: date(2023, 12, 1),
		})
		req := f.request()
		req.PatronID = nil
		req.Requester = domain.RequesterSnapshot{Name: "M. Díaz", NationalID: f.patron.NationalID}
		_, err := f.svc.RequestLoan(ctx, f.staff, req)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("Expired sanction does not block", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		until := date(2023, 12, 20)
		f.store.AddSanction(domain.Sanction{
			PatronID: f.patron.ID, Kind: domain.SanctionKindSevereDelay, AmountCents: 800,
			Status: domain.SanctionStatusActive, ValidFrom: date(2023, 11, 20), ValidUntil: &until,
		})
		_, err := f.svc.RequestLoan(ctx, f.staff, f.request())
		assert.NoError(t, err)
	})

	t.Run("Backdated start does not dodge a sanction in force today", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		f.store.AddSanction(domain.Sanction{
			PatronID: f.patron.ID, Kind: domain.SanctionKindLoss, AmountCents: 2500,
			Status: domain.SanctionStatusActive, ValidFrom: date(2024, 1, 1),
		})
		req := f.request()
		req.StartDate = date(2023, 12, 31)
		req.DueDate = date(2024, 1, 10)
		loan, err := f.svc.RequestLoan(ctx, f.staff, req)
		assert.Nil(t, loan)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		assert.Equal(t, 0, f.store.LoanCount())
	})

	t.Run("Future start does not dodge a sanction in force today", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		until := date(2024, 1, 20)
		f.store.AddSanction(domain.Sanction{
			PatronID: f.patron.ID, Kind: domain.SanctionKindSevereDelay, AmountCents: 800,
			Status: domain.SanctionStatusActive, ValidFrom: date(2023, 12, 21), ValidUntil: &until,
		})
		req := f.request()
		req.StartDate = date(2024, 1, 25)
		req.DueDate = date(2024, 2, 5)
		_, err := f.svc.RequestLoan(ctx, f.staff, req)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		assert.Equal(t, 0, f.store.LoanCount())
	})

	t.Run("Sanction starting on a future start date blocks", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		f.store.AddSanction(domain.Sanction{
			PatronID: f.patron.ID, Kind: domain.SanctionKindLoss, AmountCents: 2500,
			Status: domain.SanctionStatusActive, ValidFrom: date(2024, 1, 5),
		})
		req := f.request()
		req.StartDate = date(2024, 1, 6)
		req.DueDate = date(2024, 1, 20)
		_, err := f.svc.RequestLoan(ctx, f.staff, req)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("Lost item", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		lost := f.store.AddItem(domain.Item{Title: "Atlas", Barcode: "LIB-0002", Availability: domain.ItemLost})
		req := f.request()
		req.ItemID = lost.ID
		_, err := f.svc.RequestLoan(ctx, f.staff, req)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("Unknown item", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		req := f.request()
		req.ItemID = 999
		_, err := f.svc.RequestLoan(ctx, f.staff, req)
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})
}

func TestLoanService_Reject(t *testing.T) {
	f := newLoanFixture(t, domain.AuditModeStrict)
	ctx := context.Background()
	f.clock.Set(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))

	loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
	require.NoError(t, err)

	t.Run("Reason required", func(t *testing.T) {
		_, err := f.svc.Reject(ctx, f.staff, loan.ID, "   ")
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	rejected, err := f.svc.Reject(ctx, f.staff, loan.ID, "missing ID")
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusRejected, rejected.Status)
	assert.Equal(t, "missing ID", rejected.RejectionReason)
	require.NotNil(t, rejected.RejectedAt)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), *rejected.RejectedAt)

	_, err = f.svc.Approve(ctx, f.staff, loan.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Equal(t, domain.LoanStatusRejected, f.store.Loan(loan.ID).Status)

	f.email.AssertCalled(t, "SendLoanStatusNotification", mock.Anything, "marta@example.test", "Marta Díaz",
		f.item.Title, domain.LoanStatusRejected, "missing ID")
}

func TestLoanService_InvalidTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("Approve twice", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
		require.NoError(t, err)
		first, err := f.svc.Approve(ctx, f.staff, loan.ID)
		require.NoError(t, err)

		f.clock.AdvanceDays(1)
		_, err = f.svc.Approve(ctx, f.staff, loan.ID)
		assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
		assert.Equal(t, *first.ApprovedAt, *f.store.Loan(loan.ID).ApprovedAt)
		assert.Len(t, f.store.AuditFor(domain.EntityLoan, entityIDOf(loan.ID)), 2)
	})

	t.Run("Activate pending", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
		require.NoError(t, err)
		_, err = f.svc.MarkActive(ctx, f.staff, loan.ID)
		assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
		assert.Equal(t, domain.ItemAvailable, f.store.Item(f.item.ID).Availability)
	})

	t.Run("Cancel active", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		loan := f.activeLoan(t)
		_, err := f.svc.Cancel(ctx, f.staff, loan.ID)
		assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
	})

	t.Run("Return pending", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
		require.NoError(t, err)
		_, err = f.svc.MarkReturned(ctx, f.staff, loan.ID, time.Time{})
		assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
	})

	t.Run("Unknown loan", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		_, err := f.svc.Approve(ctx, f.staff, 404)
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})
}

func TestLoanService_Cancel(t *testing.T) {
	f := newLoanFixture(t, domain.AuditModeStrict)
	ctx := context.Background()

	loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.staff, loan.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, domain.SystemActor(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	entries := f.store.AuditFor(domain.EntityLoan, entityIDOf(loan.ID))
	require.Len(t, entries, 3)
	assert.Equal(t, domain.AuditActionCancelled, entries[2].Action)
	assert.Nil(t, entries[2].ActorID)

	// The slot is free again.
	_, err = f.svc.RequestLoan(ctx, f.staff, f.request())
	assert.NoError(t, err)
}

func TestLoanService_MarkReturned(t *testing.T) {
	ctx := context.Background()

	t.Run("On the due date", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		loan := f.activeLoan(t)
		f.clock.Set(time.Date(2024, 1, 15, 17, 0, 0, 0, time.UTC))

		returned, err := f.svc.MarkReturned(ctx, f.staff, loan.ID, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusReturned, returned.Status)
		assert.Equal(t, int32(0), returned.DaysOverdue)
		require.NotNil(t, returned.ResolvedAt)
		assert.Equal(t, f.staff.UserID, returned.ReceivedBy)
		assert.Equal(t, domain.ItemAvailable, f.store.Item(f.item.ID).Availability)
		assert.Empty(t, f.store.SanctionsOf(f.patron.ID))
	})

	t.Run("Severely late", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		loan := f.activeLoan(t)
		f.clock.Set(time.Date(2024, 2, 10, 10, 0, 0, 0, time.UTC))

		returned, err := f.svc.MarkReturned(ctx, f.staff, loan.ID, date(2024, 2, 4))
		require.NoError(t, err)
		assert.Equal(t, int32(20), returned.DaysOverdue)
		assert.Equal(t, date(2024, 2, 4), *returned.ResolvedAt)

		days, err := f.svc.RecomputeOverdue(ctx, loan.ID, date(2024, 3, 1))
		require.NoError(t, err)
		assert.Equal(t, int32(0), days)
		assert.Equal(t, int32(20), f.store.Loan(loan.ID).DaysOverdue)

		sanctions := f.store.SanctionsOf(f.patron.ID)
		require.Len(t, sanctions, 1)
		assert.Equal(t, domain.SanctionKindSevereDelay, sanctions[0].Kind)
		assert.Equal(t, int32(1000), sanctions[0].AmountCents)
		assert.Equal(t, loan.ID, *sanctions[0].LoanID)
		f.email.AssertCalled(t, "SendSanctionNotification", mock.Anything, "marta@example.test", "Marta Díaz", mock.Anything)
	})

	t.Run("Return date in the future", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		loan := f.activeLoan(t)
		_, err := f.svc.MarkReturned(ctx, f.staff, loan.ID, date(2024, 1, 5))
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		assert.Equal(t, domain.LoanStatusActive, f.store.Loan(loan.ID).Status)
	})

	t.Run("Return date before start", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		loan := f.activeLoan(t)
		_, err := f.svc.MarkReturned(ctx, f.staff, loan.ID, date(2023, 12, 31))
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})
}

func TestLoanService_MarkLost(t *testing.T) {
	f := newLoanFixture(t, domain.AuditModeStrict)
	ctx := context.Background()
	loan := f.activeLoan(t)
	f.clock.Set(time.Date(2024, 1, 20, 11, 0, 0, 0, time.UTC))

	lost, err := f.svc.MarkLost(ctx, f.staff, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusLost, lost.Status)
	assert.Equal(t, int32(5), lost.DaysOverdue)
	assert.Nil(t, lost.ReceivedBy, "a lost item is never received")
	assert.Nil(t, f.store.Loan(loan.ID).ReceivedBy)
	assert.Equal(t, domain.ItemLost, f.store.Item(f.item.ID).Availability)

	sanctions := f.store.SanctionsOf(f.patron.ID)
	require.Len(t, sanctions, 1)
	assert.Equal(t, domain.SanctionKindLoss, sanctions[0].Kind)
	assert.Equal(t, f.patron.ID, sanctions[0].PatronID)
	require.NotNil(t, sanctions[0].LoanID)
	assert.Equal(t, loan.ID, *sanctions[0].LoanID)
	assert.Equal(t, int32(3900), sanctions[0].AmountCents)

	loanEntries := f.store.AuditFor(domain.EntityLoan, entityIDOf(loan.ID))
	lostEntry := loanEntries[len(loanEntries)-1]
	assert.Equal(t, domain.AuditActionLost, lostEntry.Action)
	assert.Equal(t, f.staff.UserID, lostEntry.ActorID)
	sanctionEntries := f.store.AuditFor(domain.EntitySanction, entityIDOf(sanctions[0].ID))
	require.Len(t, sanctionEntries, 1)
	assert.Equal(t, domain.AuditActionCreate, sanctionEntries[0].Action)

	t.Run("Walk-in loss creates no sanction", func(t *testing.T) {
		g := newLoanFixture(t, domain.AuditModeStrict)
		req := g.request()
		req.PatronID = nil
		req.Requester = domain.RequesterSnapshot{Name: "Visitor", NationalID: "X-1"}
		l, err := g.svc.RequestLoan(ctx, g.staff, req)
		require.NoError(t, err)
		_, err = g.svc.Approve(ctx, g.staff, l.ID)
		require.NoError(t, err)
		_, err = g.svc.MarkActive(ctx, g.staff, l.ID)
		require.NoError(t, err)

		_, err = g.svc.MarkLost(ctx, g.staff, l.ID)
		require.NoError(t, err)
		for _, e := range g.store.AuditEntries() {
			assert.NotEqual(t, domain.EntitySanction, e.EntityType)
		}
	})
}

func TestLoanService_PersistenceFailureIsAtomic(t *testing.T) {
	f := newLoanFixture(t, domain.AuditModeBestEffort)
	ctx := context.Background()

	loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
	require.NoError(t, err)
	auditBefore := len(f.store.AuditEntries())

	f.store.FailOn("loans.Update", testutil.ErrInjected)
	_, err = f.svc.Approve(ctx, f.staff, loan.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindPersistence, domain.KindOf(err))

	stored := f.store.Loan(loan.ID)
	assert.Equal(t, domain.LoanStatusPending, stored.Status)
	assert.Nil(t, stored.ApprovedAt)
	assert.Len(t, f.store.AuditEntries(), auditBefore)

	t.Run("Failure after the item update rolls back the item too", func(t *testing.T) {
		f.store.FailOn("loans.Update", nil)
		_, err := f.svc.Approve(ctx, f.staff, loan.ID)
		require.NoError(t, err)

		f.store.FailOn("loans.Update", testutil.ErrInjected)
		_, err = f.svc.MarkActive(ctx, f.staff, loan.ID)
		require.Error(t, err)
		assert.Equal(t, domain.ItemAvailable, f.store.Item(f.item.ID).Availability)
		assert.Empty(t, f.store.AuditFor(domain.EntityItem, entityIDOf(f.item.ID)))
	})
}

func TestLoanService_AuditModes(t *testing.T) {
	ctx := context.Background()

	t.Run("Best effort keeps the mutation", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeBestEffort)
		loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
		require.NoError(t, err)

		f.store.FailOn("audit.Create", testutil.ErrInjected)
		approved, err := f.svc.Approve(ctx, f.staff, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusApproved, approved.Status)
		assert.Equal(t, domain.LoanStatusApproved, f.store.Loan(loan.ID).Status)
		assert.Len(t, f.store.AuditFor(domain.EntityLoan, entityIDOf(loan.ID)), 1)
	})

	t.Run("Strict rolls back", func(t *testing.T) {
		f := newLoanFixture(t, domain.AuditModeStrict)
		loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
		require.NoError(t, err)

		f.store.FailOn("audit.Create", testutil.ErrInjected)
		_, err = f.svc.Approve(ctx, f.staff, loan.ID)
		require.Error(t, err)
		assert.Equal(t, domain.KindPersistence, domain.KindOf(err))
		assert.Equal(t, domain.LoanStatusPending, f.store.Loan(loan.ID).Status)
	})
}

func TestLoanService_EmailFailureDoesNotFailTransition(t *testing.T) {
	f := newLoanFixture(t, domain.AuditModeStrict)
	ctx := context.Background()
	f.email.ExpectedCalls = nil
	f.email.On("SendLoanStatusNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down"))

	loan, err := f.svc.RequestLoan(ctx, f.staff, f.request())
	require.NoError(t, err)
	approved, err := f.svc.Approve(ctx, f.staff, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusApproved, approved.Status)
	f.email.AssertNumberOfCalls(t, "SendLoanStatusNotification", 1)
}

func TestLoanService_GetAndList(t *testing.T) {
	f := newLoanFixture(t, domain.AuditModeStrict)
	ctx := context.Background()
	loan := f.activeLoan(t)

	got, err := f.svc.GetLoan(ctx, loan.ID, date(2024, 1, 18))
	require.NoError(t, err)
	assert.Equal(t, int32(3), got.DaysOverdue)
	assert.Equal(t, domain.LoanStatusOverdue, got.DisplayStatus(date(2024, 1, 18)))

	loans, total, err := f.svc.ListLoans(ctx, domain.LoanFilter{Status: domain.LoanStatusActive, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	require.Len(t, loans, 1)
	assert.Equal(t, loan.ID, loans[0].ID)

	_, total, err = f.svc.ListLoans(ctx, domain.LoanFilter{Status: domain.LoanStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int32(0), total)
}
