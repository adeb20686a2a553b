package jobs

import (
	"context"
	"fmt"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/logger"
)

// RefreshOverdueLoans recomputes the cached days_overdue of every active
// loan. The cache is derived data, so the refresh is not audited.
func (jr *JobRunner) RefreshOverdueLoans() error {
	return jr.runWithRecovery("RefreshOverdueLoans", func(ctx context.Context) error {
		asOf := domain.DateOf(jr.now())
		n, err := jr.loans.RefreshDaysOverdue(ctx, asOf)
		if err != nil {
			return fmt.Errorf("refresh days overdue: %w", err)
		}
		logger.InfoContext(ctx, "Refreshed overdue counters", "updated", n, "as_of", asOf.Format("2006-01-02"))
		return nil
	})
}

// SendOverdueReminders emails every registered patron holding an overdue
// loan. Walk-in loans and patrons without an email address are skipped.
func (jr *JobRunner) SendOverdueReminders() error {
	return jr.runWithRecovery("SendOverdueReminders", func(ctx context.Context) error {
		asOf := jr.now()
		loans, err := jr.loans.ListOverdue(ctx, asOf)
		if err != nil {
			return fmt.Errorf("list overdue loans: %w", err)
		}

		sent, skipped, failed := 0, 0, 0
		for i := range loans {
			loan := &loans[i]
			if loan.PatronID == nil {
				skipped++
				continue
			}
			patron, err := jr.patrons.GetByID(ctx, *loan.PatronID)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to load patron for reminder", "loan_id", loan.ID, "patron_id", *loan.PatronID, "error", err)
				failed++
				continue
			}
			if patron.Email == "" {
				skipped++
				continue
			}
			item, err := jr.items.GetByID(ctx, loan.ItemID)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to load item for reminder", "loan_id", loan.ID, "item_id", loan.ItemID, "error", err)
				failed++
				continue
			}
			if err := jr.email.SendOverdueReminder(ctx, patron.Email, patron.Name, item.Title, loan.DueDate, loan.DaysOverdueAt(asOf)); err != nil {
				logger.WarnContext(ctx, "Failed to send overdue reminder", "loan_id", loan.ID, "error", err)
				failed++
				continue
			}
			sent++
		}
		logger.InfoContext(ctx, "Overdue reminders processed", "overdue", len(loans), "sent", sent, "skipped", skipped, "failed", failed)
		return nil
	})
}
