package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"municipal-library-backend/internal/domain"
)

var policy = domain.LoanPolicy{MaxLoanDays: 30, SevereDelayDays: 15, FinePerDayCents: 50, DefaultLossAmountCents: 2500, SanctionDays: 30}

func TestSevereDelayFineCents(t *testing.T) {
	assert.Equal(t, int32(0), SevereDelayFineCents(0, policy))
	assert.Equal(t, int32(0), SevereDelayFineCents(14, policy))
	assert.Equal(t, int32(750), SevereDelayFineCents(15, policy))
	assert.Equal(t, int32(0), SevereDelayFineCents(40, domain.LoanPolicy{}))
}

func TestLossAmountCents(t *testing.T) {
	assert.Equal(t, int32(4200), LossAmountCents(&domain.Item{ReplacementCostCents: 4200}, policy))
	assert.Equal(t, int32(2500), LossAmountCents(&domain.Item{}, policy))
	assert.Equal(t, int32(2500), LossAmountCents(nil, policy))
}

func TestSanctionWindow(t *testing.T) {
	from, until := SanctionWindow(time.Date(2024, 2, 1, 15, 4, 0, 0, time.UTC), policy)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), from)
	require.NotNil(t, until)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), *until)

	_, open := SanctionWindow(from, domain.LoanPolicy{})
	assert.Nil(t, open)
}

func TestNewSevereDelaySanction(t *testing.T) {
	now := time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC)
	patronID := int32(3)
	resolved := domain.DateOf(now)
	loan := &domain.Loan{ID: 9, PatronID: &patronID, DaysOverdue: 20, ResolvedAt: &resolved}

	s := NewSevereDelaySanction(loan, policy, now)
	require.NotNil(t, s)
	assert.Equal(t, domain.SanctionKindSevereDelay, s.Kind)
	assert.Equal(t, int32(1000), s.AmountCents)
	assert.Equal(t, patronID, s.PatronID)
	assert.Equal(t, int32(9), *s.LoanID)
	assert.Equal(t, domain.SanctionStatusActive, s.Status)

	t.Run("Below threshold", func(t *testing.T) {
		short := *loan
		short.DaysOverdue = 3
		assert.Nil(t, NewSevereDelaySanction(&short, policy, now))
	})

	t.Run("Walk-in", func(t *testing.T) {
		walkIn := *loan
		walkIn.PatronID = nil
		assert.Nil(t, NewSevereDelaySanction(&walkIn, policy, now))
	})
}

func TestNewLossSanction(t *testing.T) {
	now := time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC)
	patronID := int32(3)
	loan := &domain.Loan{ID: 9, PatronID: &patronID}

	s := NewLossSanction(loan, &domain.Item{ReplacementCostCents: 3900}, policy, now)
	require.NotNil(t, s)
	assert.Equal(t, domain.SanctionKindLoss, s.Kind)
	assert.Equal(t, int32(3900), s.AmountCents)
	assert.Nil(t, s.ValidUntil)
	assert.Equal(t, domain.DateOf(now), s.ValidFrom)

	loan.PatronID = nil
	assert.Nil(t, NewLossSanction(loan, nil, policy, now))
}
