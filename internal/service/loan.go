package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/repository"
	"municipal-library-backend/internal/utils"
)

type loanService struct {
	uow      repository.UnitOfWork
	loanRepo repository.LoanRepository
	recorder *AuditRecorder
	policy   domain.LoanPolicy
	emailSvc EmailService
	now      func() time.Time
	log      *slog.Logger
}

type LoanOption func(*loanService)

// WithClock replaces time.Now; tests pin it to fixed dates.
func WithClock(now func() time.Time) LoanOption {
	return func(s *loanService) { s.now = now }
}

// WithEmailService enables patron notices, sent after the transaction commits.
func WithEmailService(emailSvc EmailService) LoanOption {
	return func(s *loanService) { s.emailSvc = emailSvc }
}

func NewLoanService(
	uow repository.UnitOfWork,
	loanRepo repository.LoanRepository,
	recorder *AuditRecorder,
	policy domain.LoanPolicy,
	opts ...LoanOption,
) LoanService {
	s := &loanService{
		uow:      uow,
		loanRepo: loanRepo,
		recorder: recorder,
		policy:   policy,
		now:      time.Now,
		log:      logger.WithService("loan"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// notice is sent once the transaction that produced it has committed.
type notice func(ctx context.Context, emailSvc EmailService) error

func entityID(id int32) string {
	return strconv.FormatInt(int64(id), 10)
}

func (s *loanService) RequestLoan(ctx context.Context, actor domain.Actor, req domain.LoanRequest) (*domain.Loan, error) {
	const op = "request loan"
	logger.EnterMethod("loanService.RequestLoan", "itemID", req.ItemID)

	if err := domain.ValidateLoanRequest(req, s.policy); err != nil {
		logger.ExitMethodWithError("loanService.RequestLoan", err, "itemID", req.ItemID)
		return nil, err
	}

	now := s.now().UTC()
	var loan *domain.Loan
	err := s.uow.WithinTx(ctx, func(repos repository.Repositories) error {
		// The item row lock serializes concurrent requests for the same item.
		item, err := repos.Items.GetForUpdate(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if !item.Availability.IsLendable() {
			return domain.NewValidationError(op, "item %d is %s and cannot be lent", item.ID, item.Availability)
		}

		unresolved, err := repos.Loans.CountUnresolvedByItem(ctx, item.ID)
		if err != nil {
			return err
		}
		if unresolved > 0 {
			return domain.NewConflictError(op, "item %d already has an unresolved loan", item.ID)
		}

		patron, sanctionPatronID, err := s.resolveRequester(ctx, repos, req)
		if err != nil {
			return err
		}
		if sanctionPatronID != nil {
			sanctioned, err := s.sanctionedOn(ctx, repos, *sanctionPatronID, now, req.StartDate)
			if err != nil {
				return err
			}
			if sanctioned {
				return domain.NewValidationError(op, "requester has an active sanction")
			}
		}

		loan = domain.NewLoan(req, patron, now)
		if err := repos.Loans.Create(ctx, loan); err != nil {
			return err
		}
		return s.recorder.Record(ctx, repos.Audit, domain.AuditChange{
			Actor:      actor,
			Action:     domain.AuditActionCreate,
			EntityType: domain.EntityLoan,
			EntityID:   entityID(loan.ID),
			After:      loan,
		})
	})
	if err != nil {
		logger.ExitMethodWithError("loanService.RequestLoan", err, "itemID", req.ItemID)
		return nil, err
	}

	s.actorLog(actor).Info("Loan requested", "loanID", loan.ID, "itemID", loan.ItemID)
	logger.ExitMethod("loanService.RequestLoan", "loanID", loan.ID)
	return loan, nil
}

// sanctionedOn reports whether a sanction is in force today or on the
// requested start date. The start date is client supplied, so it never
// replaces the clock.
func (s *loanService) sanctionedOn(ctx context.Context, repos repository.Repositories, patronID int32, now, startDate time.Time) (bool, error) {
	sanctioned, err := repos.Sanctions.HasActive(ctx, patronID, now)
	if err != nil || sanctioned {
		return sanctioned, err
	}
	if domain.DateOf(startDate).Equal(domain.DateOf(now)) {
		return false, nil
	}
	return repos.Sanctions.HasActive(ctx, patronID, startDate)
}

// resolveRequester loads the referenced patron. Walk-ins are matched by
// national id only to check sanctions; the loan is not linked to that record.
func (s *loanService) resolveRequester(ctx context.Context, repos repository.Repositories, req domain.LoanRequest) (*domain.Patron, *int32, error) {
	if req.PatronID != nil {
		patron, err := repos.Patrons.GetByID(ctx, *req.PatronID)
		if err != nil {
			return nil, nil, err
		}
		return patron, &patron.ID, nil
	}

	match, err := repos.Patrons.GetByNationalID(ctx, strings.TrimSpace(req.Requester.NationalID))
	switch {
	case err == nil:
		return nil, &match.ID, nil
	case domain.KindOf(err) == domain.KindNotFound:
		return nil, nil, nil
	default:
		return nil, nil, err
	}
}

func (s *loanService) Approve(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error) {
	const op = "approve loan"
	return s.transition(ctx, actor, op, loanID, domain.AuditActionApproved,
		func(repos repository.Repositories, loan *domain.Loan, now time.Time) ([]notice, error) {
			if err := loan.TransitionTo(op, domain.LoanStatusApproved); err != nil {
				return nil, err
			}
			loan.ApprovedAt = &now
			return s.statusNotice(ctx, repos, loan, ""), nil
		})
}

func (s *loanService) MarkActive(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error) {
	const op = "activate loan"
	return s.transition(ctx, actor, op, loanID, domain.AuditActionLoaned,
		func(repos repository.Repositories, loan *domain.Loan, now time.Time) ([]notice, error) {
			if err := loan.TransitionTo(op, domain.LoanStatusActive); err != nil {
				return nil, err
			}
			loan.GrantedBy = actor.UserID
			_, err := s.setItemAvailability(ctx, repos, actor, loan.ItemID, domain.ItemOnLoan, now)
			return nil, err
		})
}

func (s *loanService) Reject(ctx context.Context, actor domain.Actor, loanID int32, reason string) (*domain.Loan, error) {
	const op = "reject loan"
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError(op, "a rejection reason is required")
	}
	return s.transition(ctx, actor, op, loanID, domain.AuditActionRejected,
		func(repos repository.Repositories, loan *domain.Loan, now time.Time) ([]notice, error) {
			if err := loan.TransitionTo(op, domain.LoanStatusRejected); err != nil {
				return nil, err
			}
			loan.RejectedAt = &now
			loan.RejectionReason = reason
			return s.statusNotice(ctx, repos, loan, reason), nil
		})
}

func (s *loanService) Cancel(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error) {
	const op = "cancel loan"
	return s.transition(ctx, actor, op, loanID, domain.AuditActionCancelled,
		func(repos repository.Repositories, loan *domain.Loan, now time.Time) ([]notice, error) {
			if err := loan.TransitionTo(op, domain.LoanStatusCancelled); err != nil {
				return nil, err
			}
			loan.CancelledAt = &now
			return nil, nil
		})
}

func (s *loanService) MarkReturned(ctx context.Context, actor domain.Actor, loanID int32, returnDate time.Time) (*domain.Loan, error) {
	const op = "return loan"
	return s.transition(ctx, actor, op, loanID, domain.AuditActionReturned,
		func(repos repository.Repositories, loan *domain.Loan, now time.Time) ([]notice, error) {
			if !loan.Status.CanTransitionTo(domain.LoanStatusReturned) {
				return nil, domain.NewInvalidTransitionError(op, loan.Status, domain.LoanStatusReturned)
			}
			returnedAt := now
			if !returnDate.IsZero() {
				returnedAt = returnDate.UTC()
			}
			if domain.DaysBetween(loan.StartDate, returnedAt) < 0 {
				return nil, domain.NewValidationError(op, "return date %s precedes start date %s",
					returnedAt.Format(time.DateOnly), loan.StartDate.Format(time.DateOnly))
			}
			if domain.DaysBetween(now, returnedAt) > 0 {
				return nil, domain.NewValidationError(op, "return date %s is in the future", returnedAt.Format(time.DateOnly))
			}

			// Freeze the overdue count while the loan is still active.
			daysOverdue := loan.DaysOverdueAt(returnedAt)
			if err := loan.TransitionTo(op, domain.LoanStatusReturned); err != nil {
				return nil, err
			}
			loan.DaysOverdue = daysOverdue
			loan.ResolvedAt = &returnedAt
			loan.ReceivedBy = actor.UserID

			if _, err := s.setItemAvailability(ctx, repos, actor, loan.ItemID, domain.ItemAvailable, now); err != nil {
				return nil, err
			}
			return s.applySanction(ctx, repos, actor, utils.NewSevereDelaySanction(loan, s.policy, now))
		})
}

func (s *loanService) MarkLost(ctx context.Context, actor domain.Actor, loanID int32) (*domain.Loan, error) {
	const op = "mark loan lost"
	return s.transition(ctx, actor, op, loanID, domain.AuditActionLost,
		func(repos repository.Repositories, loan *domain.Loan, now time.Time) ([]notice, error) {
			daysOverdue := loan.DaysOverdueAt(now)
			if err := loan.TransitionTo(op, domain.LoanStatusLost); err != nil {
				return nil, err
			}
			loan.DaysOverdue = daysOverdue
			loan.ResolvedAt = &now

			item, err := s.setItemAvailability(ctx, repos, actor, loan.ItemID, domain.ItemLost, now)
			if err != nil {
				return nil, err
			}
			return s.applySanction(ctx, repos, actor, utils.NewLossSanction(loan, item, s.policy, now))
		})
}

// transition locks the loan, applies mutate, persists the loan and records
// one audit entry for it, all in one transaction.
func (s *loanService) transition(
	ctx context.Context,
	actor domain.Actor,
	op string,
	loanID int32,
	action domain.AuditAction,
	mutate func(repos repository.Repositories, loan *domain.Loan, now time.Time) ([]notice, error),
) (*domain.Loan, error) {
	const method = "loanService.transition"
	logger.EnterMethod(method, "op", op, "loanID", loanID)

	now := s.now().UTC()
	var (
		result  *domain.Loan
		notices []notice
	)
	err := s.uow.WithinTx(ctx, func(repos repository.Repositories) error {
		loan, err := repos.Loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		before := loan.Clone()

		notices, err = mutate(repos, loan, now)
		if err != nil {
			return err
		}
		loan.UpdatedAt = now
		if err := repos.Loans.Update(ctx, loan); err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, repos.Audit, domain.AuditChange{
			Actor:      actor,
			Action:     action,
			EntityType: domain.EntityLoan,
			EntityID:   entityID(loan.ID),
			Before:     before,
			After:      loan,
		}); err != nil {
			return err
		}
		result = loan
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "loanID", loanID)
		return nil, err
	}

	s.actorLog(actor).Info("Loan transitioned", "loanID", result.ID, "status", result.Status)
	s.send(ctx, notices)
	logger.ExitMethod(method, "loanID", loanID, "status", result.Status)
	return result, nil
}

func (s *loanService) setItemAvailability(ctx context.Context, repos repository.Repositories, actor domain.Actor, itemID int32, to domain.ItemAvailability, now time.Time) (*domain.Item, error) {
	item, err := repos.Items.GetForUpdate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Availability == to {
		return item, nil
	}
	before := item.Clone()
	if err := repos.Items.UpdateAvailability(ctx, itemID, to); err != nil {
		return nil, err
	}
	item.Availability = to
	item.UpdatedAt = now
	err = s.recorder.Record(ctx, repos.Audit, domain.AuditChange{
		Actor:      actor,
		Action:     domain.AuditActionUpdate,
		EntityType: domain.EntityItem,
		EntityID:   entityID(item.ID),
		Before:     before,
		After:      item,
	})
	return item, err
}

func (s *loanService) applySanction(ctx context.Context, repos repository.Repositories, actor domain.Actor, sanction *domain.Sanction) ([]notice, error) {
	if sanction == nil {
		return nil, nil
	}
	if err := repos.Sanctions.Create(ctx, sanction); err != nil {
		return nil, err
	}
	if err := s.recorder.Record(ctx, repos.Audit, domain.AuditChange{
		Actor:      actor,
		Action:     domain.AuditActionCreate,
		EntityType: domain.EntitySanction,
		EntityID:   entityID(sanction.ID),
		After:      sanction,
	}); err != nil {
		return nil, err
	}

	if s.emailSvc == nil {
		return nil, nil
	}
	patron, err := repos.Patrons.GetByID(ctx, sanction.PatronID)
	if err != nil || patron.Email == "" {
		return nil, nil
	}
	sent := sanction.Clone()
	return []notice{func(ctx context.Context, emailSvc EmailService) error {
		return emailSvc.SendSanctionNotification(ctx, patron.Email, patron.Name, sent)
	}}, nil
}

func (s *loanService) statusNotice(ctx context.Context, repos repository.Repositories, loan *domain.Loan, note string) []notice {
	if s.emailSvc == nil || loan.PatronID == nil {
		return nil
	}
	patron, err := repos.Patrons.GetByID(ctx, *loan.PatronID)
	if err != nil || patron.Email == "" {
		return nil
	}
	item, err := repos.Items.GetByID(ctx, loan.ItemID)
	if err != nil {
		return nil
	}
	status := loan.Status
	return []notice{func(ctx context.Context, emailSvc EmailService) error {
		return emailSvc.SendLoanStatusNotification(ctx, patron.Email, patron.Name, item.Title, status, note)
	}}
}

// send delivers notices; a failed email never affects the committed loan.
func (s *loanService) send(ctx context.Context, notices []notice) {
	if s.emailSvc == nil {
		return
	}
	for _, n := range notices {
		if err := n(ctx, s.emailSvc); err != nil {
			s.log.Warn("Failed to send patron notice", "error", err)
		}
	}
}

func (s *loanService) RecomputeOverdue(ctx context.Context, loanID int32, asOf time.Time) (int32, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return 0, err
	}
	return loan.DaysOverdueAt(asOf), nil
}

func (s *loanService) GetLoan(ctx context.Context, loanID int32, asOf time.Time) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status == domain.LoanStatusActive {
		loan.DaysOverdue = loan.DaysOverdueAt(asOf)
	}
	return loan, nil
}

func (s *loanService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, int32, error) {
	return s.loanRepo.List(ctx, filter)
}

func (s *loanService) actorLog(actor domain.Actor) *slog.Logger {
	return logger.WithActor(actor.UserID, string(actor.Role), actor.RequestID).With("service", "loan")
}
