package domain

import (
	"fmt"
	"strings"
	"time"
)

type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusActive    LoanStatus = "active"
	LoanStatusReturned  LoanStatus = "returned"
	LoanStatusLost      LoanStatus = "lost"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusCancelled LoanStatus = "cancelled"

	// LoanStatusOverdue is never stored. It is derived from an active loan past its due date.
	LoanStatusOverdue LoanStatus = "overdue"
)

// UnresolvedLoanStatuses hold the item's single loan slot.
var UnresolvedLoanStatuses = []LoanStatus{LoanStatusPending, LoanStatusApproved, LoanStatusActive}

var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:  {LoanStatusApproved, LoanStatusRejected, LoanStatusCancelled},
	LoanStatusApproved: {LoanStatusActive, LoanStatusCancelled},
	LoanStatusActive:   {LoanStatusReturned, LoanStatusLost},
}

// legacy spellings found in older records
var loanStatusAliases = map[string]LoanStatus{
	"in_progress": LoanStatusActive,
	"en_curso":    LoanStatusActive,
	"activo":      LoanStatusActive,
}

func ParseLoanStatus(s string) (LoanStatus, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := loanStatusAliases[v]; ok {
		return alias, nil
	}
	switch st := LoanStatus(v); st {
	case LoanStatusPending, LoanStatusApproved, LoanStatusActive, LoanStatusReturned,
		LoanStatusLost, LoanStatusRejected, LoanStatusCancelled:
		return st, nil
	}
	return "", NewValidationError("parse loan status", "unknown loan status %q", s)
}

func (s LoanStatus) IsUnresolved() bool {
	for _, u := range UnresolvedLoanStatuses {
		if s == u {
			return true
		}
	}
	return false
}

func (s LoanStatus) IsTerminal() bool {
	_, ok := loanTransitions[s]
	return !ok
}

func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type LoanType string

const (
	LoanTypeInRoom LoanType = "in_room"
	LoanTypeHome   LoanType = "home"
)

func ParseLoanType(s string) (LoanType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in_room", "on_premises", "sala":
		return LoanTypeInRoom, nil
	case "home", "take_home", "domicilio":
		return LoanTypeHome, nil
	}
	return "", NewValidationError("parse loan type", "unknown loan type %q", s)
}

// RequesterSnapshot is copied onto the loan when it is requested and never
// follows later edits to the patron record.
type RequesterSnapshot struct {
	Name       string     `json:"name"`
	NationalID string     `json:"national_id"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Age        *int32     `json:"age,omitempty"`
	Phone      string     `json:"phone"`
	Address    string     `json:"address"`
}

type LoanRequest struct {
	ItemID     int32             `json:"item_id"`
	PatronID   *int32            `json:"patron_id,omitempty"`
	Requester  RequesterSnapshot `json:"requester"`
	StartDate  time.Time         `json:"start_date"`
	DueDate    time.Time         `json:"due_date"`
	LoanType   LoanType          `json:"loan_type"`
	Collateral string            `json:"collateral"`
	Consent    bool              `json:"consent"`
}

// LoanPolicy carries the library's configurable lending rules.
type LoanPolicy struct {
	MaxLoanDays            int32
	SevereDelayDays        int32
	FinePerDayCents        int32
	DefaultLossAmountCents int32
	SanctionDays           int32
}

type Loan struct {
	ID              int32             `json:"id"`
	ItemID          int32             `json:"item_id"`
	PatronID        *int32            `json:"patron_id,omitempty"`
	Requester       RequesterSnapshot `json:"requester"`
	StartDate       time.Time         `json:"start_date"`
	DueDate         time.Time         `json:"due_date"`
	TotalDays       int32             `json:"total_days"`
	Collateral      string            `json:"collateral"`
	LoanType        LoanType          `json:"loan_type"`
	Consent         bool              `json:"consent"`
	Status          LoanStatus        `json:"status"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
	ApprovedAt      *time.Time        `json:"approved_at,omitempty"`
	RejectedAt      *time.Time        `json:"rejected_at,omitempty"`
	RejectionReason string            `json:"rejection_reason"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	DaysOverdue     int32             `json:"days_overdue"`
	GrantedBy       *int32            `json:"granted_by,omitempty"`
	ReceivedBy      *int32            `json:"received_by,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ValidateLoanRequest checks everything about a request that does not need storage.
func ValidateLoanRequest(req LoanRequest, policy LoanPolicy) error {
	const op = "request loan"
	if req.ItemID <= 0 {
		return NewValidationError(op, "item id is required")
	}
	if !req.Consent {
		return NewValidationError(op, "consent to data processing is required")
	}
	if req.StartDate.IsZero() || req.DueDate.IsZero() {
		return NewValidationError(op, "start date and due date are required")
	}
	days := DaysBetween(req.StartDate, req.DueDate)
	if days < 0 {
		return NewValidationError(op, "due date %s precedes start date %s",
			req.DueDate.Format(time.DateOnly), req.StartDate.Format(time.DateOnly))
	}
	switch req.LoanType {
	case LoanTypeInRoom:
		if days != 0 {
			return NewValidationError(op, "in-room loans must be due the day they start")
		}
	case LoanTypeHome:
	default:
		return NewValidationError(op, "unknown loan type %q", req.LoanType)
	}
	if policy.MaxLoanDays > 0 && days > policy.MaxLoanDays {
		return NewValidationError(op, "loan of %d days exceeds the %d day maximum", days, policy.MaxLoanDays)
	}
	if req.PatronID == nil && (strings.TrimSpace(req.Requester.Name) == "" || strings.TrimSpace(req.Requester.NationalID) == "") {
		return NewValidationError(op, "walk-in requesters need a name and national id")
	}
	return nil
}

// NewLoan builds a pending loan. When patron is non-nil its current data
// fills the requester snapshot, overriding the free-text fields it covers.
func NewLoan(req LoanRequest, patron *Patron, now time.Time) *Loan {
	snap := req.Requester
	if patron != nil {
		snap = patron.Snapshot()
	}
	if snap.BirthDate != nil {
		age := AgeOn(*snap.BirthDate, req.StartDate)
		snap.Age = &age
	}

	loan := &Loan{
		ItemID:     req.ItemID,
		Requester:  snap,
		StartDate:  DateOf(req.StartDate),
		DueDate:    DateOf(req.DueDate),
		TotalDays:  DaysBetween(req.StartDate, req.DueDate),
		Collateral: req.Collateral,
		LoanType:   req.LoanType,
		Consent:    req.Consent,
		Status:     LoanStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if patron != nil {
		id := patron.ID
		loan.PatronID = &id
	}
	return loan
}

// DaysOverdueAt is pure: max(0, asOf - due) for active loans, 0 otherwise.
// A loan is not overdue on its due date.
func (l *Loan) DaysOverdueAt(asOf time.Time) int32 {
	if l.Status != LoanStatusActive {
		return 0
	}
	if d := DaysBetween(l.DueDate, asOf); d > 0 {
		return d
	}
	return 0
}

func (l *Loan) DisplayStatus(asOf time.Time) LoanStatus {
	if l.DaysOverdueAt(asOf) > 0 {
		return LoanStatusOverdue
	}
	return l.Status
}

// TransitionTo moves the loan to next or returns an InvalidTransition error.
func (l *Loan) TransitionTo(op string, next LoanStatus) error {
	if !l.Status.CanTransitionTo(next) {
		return NewInvalidTransitionError(op, l.Status, next)
	}
	l.Status = next
	return nil
}

func (l *Loan) String() string {
	return fmt.Sprintf("loan %d (item %d, %s)", l.ID, l.ItemID, l.Status)
}

// Clone returns a deep copy so callers can keep a before-image across mutation.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	c := *l
	c.PatronID = cloneInt32(l.PatronID)
	c.GrantedBy = cloneInt32(l.GrantedBy)
	c.ReceivedBy = cloneInt32(l.ReceivedBy)
	c.ResolvedAt = cloneTime(l.ResolvedAt)
	c.ApprovedAt = cloneTime(l.ApprovedAt)
	c.RejectedAt = cloneTime(l.RejectedAt)
	c.CancelledAt = cloneTime(l.CancelledAt)
	c.Requester.BirthDate = cloneTime(l.Requester.BirthDate)
	c.Requester.Age = cloneInt32(l.Requester.Age)
	return &c
}

type LoanFilter struct {
	Status   LoanStatus
	ItemID   *int32
	PatronID *int32
	Page     int32
	PageSize int32
}

func cloneInt32(p *int32) *int32 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
