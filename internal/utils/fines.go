package utils

import (
	"time"

	"municipal-library-backend/internal/domain"
)

// SevereDelayFineCents returns the fine for a return that was daysOverdue late.
// Returns 0 below the policy's severe-delay threshold.
func SevereDelayFineCents(daysOverdue int32, policy domain.LoanPolicy) int32 {
	if policy.SevereDelayDays <= 0 || daysOverdue < policy.SevereDelayDays {
		return 0
	}
	return daysOverdue * policy.FinePerDayCents
}

// LossAmountCents prices a lost item at its replacement cost, falling back
// to the policy default when the catalog has no cost recorded.
func LossAmountCents(item *domain.Item, policy domain.LoanPolicy) int32 {
	if item != nil && item.ReplacementCostCents > 0 {
		return item.ReplacementCostCents
	}
	return policy.DefaultLossAmountCents
}

// SanctionWindow returns the validity window of a time-bound sanction starting on from.
// A non-positive SanctionDays yields an open-ended window.
func SanctionWindow(from time.Time, policy domain.LoanPolicy) (time.Time, *time.Time) {
	start := domain.DateOf(from)
	if policy.SanctionDays <= 0 {
		return start, nil
	}
	until := start.AddDate(0, 0, int(policy.SanctionDays))
	return start, &until
}

// NewSevereDelaySanction builds the sanction for a late return, or nil when
// the delay is below the threshold or the loan has no registered patron.
func NewSevereDelaySanction(loan *domain.Loan, policy domain.LoanPolicy, now time.Time) *domain.Sanction {
	if loan.PatronID == nil || loan.ResolvedAt == nil {
		return nil
	}
	amount := SevereDelayFineCents(loan.DaysOverdue, policy)
	if amount == 0 {
		return nil
	}
	from, until := SanctionWindow(*loan.ResolvedAt, policy)
	loanID := loan.ID
	return &domain.Sanction{
		PatronID:    *loan.PatronID,
		LoanID:      &loanID,
		Kind:        domain.SanctionKindSevereDelay,
		AmountCents: amount,
		Status:      domain.SanctionStatusActive,
		ValidFrom:   from,
		ValidUntil:  until,
		CreatedAt:   now,
	}
}

// NewLossSanction builds the sanction for a lost item, or nil without a registered patron.
func NewLossSanction(loan *domain.Loan, item *domain.Item, policy domain.LoanPolicy, now time.Time) *domain.Sanction {
	if loan.PatronID == nil {
		return nil
	}
	loanID := loan.ID
	return &domain.Sanction{
		PatronID:    *loan.PatronID,
		LoanID:      &loanID,
		Kind:        domain.SanctionKindLoss,
		AmountCents: LossAmountCents(item, policy),
		Status:      domain.SanctionStatusActive,
		ValidFrom:   domain.DateOf(now),
		CreatedAt:   now,
	}
}
