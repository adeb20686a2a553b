package postgres

import (
	"context"
	"fmt"
	"time"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/repository"
)

const loanColumns = `id, item_id, patron_id, requester_name, requester_national_id, requester_birth_date,
	requester_age, requester_phone, requester_address, start_date, due_date, total_days,
	collateral, loan_type, consent, status, resolved_at, approved_at, rejected_at,
	rejection_reason, cancelled_at, days_overdue, granted_by, received_by, created_at, updated_at`

type loanRepository struct {
	db DBTX
}

func NewLoanRepository(db DBTX) repository.LoanRepository {
	return &loanRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*domain.Loan, error) {
	l := &domain.Loan{}
	err := row.Scan(
		&l.ID, &l.ItemID, &l.PatronID, &l.Requester.Name, &l.Requester.NationalID, &l.Requester.BirthDate,
		&l.Requester.Age, &l.Requester.Phone, &l.Requester.Address, &l.StartDate, &l.DueDate, &l.TotalDays,
		&l.Collateral, &l.LoanType, &l.Consent, &l.Status, &l.ResolvedAt, &l.ApprovedAt, &l.RejectedAt,
		&l.RejectionReason, &l.CancelledAt, &l.DaysOverdue, &l.GrantedBy, &l.ReceivedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *loanRepository) Create(ctx context.Context, l *domain.Loan) error {
	logger.EnterMethod("loanRepository.Create", "itemID", l.ItemID)

	query := `
		INSERT INTO loans (
			item_id, patron_id, requester_name, requester_national_id, requester_birth_date,
			requester_age, requester_phone, requester_address, start_date, due_date, total_days,
			collateral, loan_type, consent, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		l.ItemID, l.PatronID, l.Requester.Name, l.Requester.NationalID, l.Requester.BirthDate,
		l.Requester.Age, l.Requester.Phone, l.Requester.Address, l.StartDate, l.DueDate, l.TotalDays,
		l.Collateral, l.LoanType, l.Consent, l.Status, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID)
	if err != nil {
		logger.ExitMethodWithError("loanRepository.Create", err, "itemID", l.ItemID)
		return mapError("create loan", err)
	}

	logger.ExitMethod("loanRepository.Create", "loanID", l.ID)
	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, id int32) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	l, err := scanLoan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapGetError("get loan", "loan", id, err)
	}
	return l, nil
}

func (r *loanRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	logger.DatabaseCall("loans.select_for_update", query, "loanID", id)
	l, err := scanLoan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapGetError("lock loan", "loan", id, err)
	}
	return l, nil
}

func (r *loanRepository) Update(ctx context.Context, l *domain.Loan) error {
	logger.EnterMethod("loanRepository.Update", "loanID", l.ID, "status", l.Status)

	query := `
		UPDATE loans SET
			status = $1,
			resolved_at = $2,
			approved_at = $3,
			rejected_at = $4,
			rejection_reason = $5,
			cancelled_at = $6,
			days_overdue = $7,
			granted_by = $8,
			received_by = $9,
			updated_at = $10
		WHERE id = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		l.Status, l.ResolvedAt, l.ApprovedAt, l.RejectedAt, l.RejectionReason,
		l.CancelledAt, l.DaysOverdue, l.GrantedBy, l.ReceivedBy, l.UpdatedAt, l.ID,
	)
	if err != nil {
		logger.ExitMethodWithError("loanRepository.Update", err, "loanID", l.ID)
		return mapError("update loan", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewNotFoundError("update loan", "loan", l.ID)
	}

	logger.ExitMethod("loanRepository.Update", "loanID", l.ID)
	return nil
}

func (r *loanRepository) CountUnresolvedByItem(ctx context.Context, itemID int32) (int32, error) {
	query := `SELECT count(*) FROM loans WHERE item_id = $1 AND status IN ('pending', 'approved', 'active')`
	var count int32
	if err := r.db.QueryRowContext(ctx, query, itemID).Scan(&count); err != nil {
		return 0, mapError("count unresolved loans", err)
	}
	return count, nil
}

func (r *loanRepository) List(ctx context.Context, f domain.LoanFilter) ([]domain.Loan, int32, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	offset := (f.Page - 1) * f.PageSize

	where := ` FROM loans WHERE 1=1`
	var args []any
	argIdx := 1
	switch f.Status {
	case "":
	case domain.LoanStatusOverdue:
		where += ` AND status = 'active' AND due_date < CURRENT_DATE`
	default:
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, f.Status)
		argIdx++
	}
	if f.ItemID != nil {
		where += fmt.Sprintf(" AND item_id = $%d", argIdx)
		args = append(args, *f.ItemID)
		argIdx++
	}
	if f.PatronID != nil {
		where += fmt.Sprintf(" AND patron_id = $%d", argIdx)
		args = append(args, *f.PatronID)
		argIdx++
	}

	var count int32
	if err := r.db.QueryRowContext(ctx, "SELECT count(*)"+where, args...).Scan(&count); err != nil {
		return nil, 0, mapError("count loans", err)
	}

	query := "SELECT " + loanColumns + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, f.PageSize, offset)

	loans, err := r.queryLoans(ctx, "list loans", query, args...)
	if err != nil {
		return nil, 0, err
	}
	return loans, count, nil
}

func (r *loanRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE status = 'active' AND due_date < $1 ORDER BY due_date, id`
	return r.queryLoans(ctx, "list overdue loans", query, domain.DateOf(asOf))
}

func (r *loanRepository) RefreshDaysOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	query := `
		UPDATE loans SET days_overdue = GREATEST($1::date - due_date, 0)
		WHERE status = 'active' AND days_overdue <> GREATEST($1::date - due_date, 0)
	`
	logger.DatabaseCall("loans.refresh_days_overdue", query, "asOf", asOf)
	res, err := r.db.ExecContext(ctx, query, domain.DateOf(asOf))
	if err != nil {
		logger.DatabaseResult("loans.refresh_days_overdue", 0, err)
		return 0, mapError("refresh days overdue", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError("refresh days overdue", err)
	}
	logger.DatabaseResult("loans.refresh_days_overdue", n, nil)
	return n, nil
}

func (r *loanRepository) queryLoans(ctx context.Context, op, query string, args ...any) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		loans = append(loans, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return loans, nil
}
