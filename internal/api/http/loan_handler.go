package http

import (
	"net/http"
	"time"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/service"
	"municipal-library-backend/internal/utils"
)

type LoanHandler struct {
	loanSvc service.LoanService
	now     func() time.Time
}

func NewLoanHandler(loanSvc service.LoanService) *LoanHandler {
	return &LoanHandler{loanSvc: loanSvc, now: time.Now}
}

type requesterBody struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
	BirthDate  string `json:"birth_date"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
}

type loanRequestBody struct {
	ItemID     int32         `json:"item_id"`
	PatronID   *int32        `json:"patron_id"`
	Requester  requesterBody `json:"requester"`
	StartDate  string        `json:"start_date"`
	DueDate    string        `json:"due_date"`
	LoanType   string        `json:"loan_type"`
	Collateral string        `json:"collateral"`
	Consent    bool          `json:"consent"`
}

func (b loanRequestBody) toDomain() (domain.LoanRequest, error) {
	const op = "request loan"
	start, err := utils.ParseDate(b.StartDate)
	if err != nil {
		return domain.LoanRequest{}, domain.NewValidationError(op, "start_date: %v", err)
	}
	due, err := utils.ParseDate(b.DueDate)
	if err != nil {
		return domain.LoanRequest{}, domain.NewValidationError(op, "due_date: %v", err)
	}
	loanType, err := domain.ParseLoanType(b.LoanType)
	if err != nil {
		return domain.LoanRequest{}, err
	}
	birth, err := utils.ParseOptionalDate(b.Requester.BirthDate)
	if err != nil {
		return domain.LoanRequest{}, domain.NewValidationError(op, "birth_date: %v", err)
	}
	return domain.LoanRequest{
		ItemID:   b.ItemID,
		PatronID: b.PatronID,
		Requester: domain.RequesterSnapshot{
			Name:       b.Requester.Name,
			NationalID: b.Requester.NationalID,
			BirthDate:  birth,
			Phone:      b.Requester.Phone,
			Address:    b.Requester.Address,
		},
		StartDate:  start,
		DueDate:    due,
		LoanType:   loanType,
		Collateral: b.Collateral,
		Consent:    b.Consent,
	}, nil
}

type loanResponse struct {
	*domain.Loan
	DisplayStatus domain.LoanStatus `json:"display_status"`
}

func (h *LoanHandler) respond(w http.ResponseWriter, status int, loan *domain.Loan) {
	writeJSON(w, status, loanResponse{Loan: loan, DisplayStatus: loan.DisplayStatus(h.now())})
}

func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body loanRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	actor := ActorFromContext(r.Context())
	if !actor.IsStaff() {
		// Patrons may only borrow for themselves.
		if actor.PatronID == nil {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "account is not linked to a patron record"})
			return
		}
		req.PatronID = actor.PatronID
	}

	loan, err := h.loanSvc.RequestLoan(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, loan)
}

func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	loan, err := h.loanSvc.GetLoan(r.Context(), id, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, loan)
}

type overdueResponse struct {
	LoanID      int32  `json:"loan_id"`
	AsOf        string `json:"as_of"`
	DaysOverdue int32  `json:"days_overdue"`
}

func (h *LoanHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf := domain.DateOf(h.now())
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = utils.ParseDate(raw); err != nil {
			writeError(w, r, domain.NewValidationError("recompute overdue", "as_of: %v", err))
			return
		}
	}
	days, err := h.loanSvc.RecomputeOverdue(r.Context(), id, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overdueResponse{LoanID: id, AsOf: utils.FormatDate(asOf), DaysOverdue: days})
}

type loanListResponse struct {
	Loans    []loanResponse `json:"loans"`
	Total    int32          `json:"total"`
	Page     int32          `json:"page"`
	PageSize int32          `json:"page_size"`
}

func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter domain.LoanFilter
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		if raw == string(domain.LoanStatusOverdue) {
			filter.Status = domain.LoanStatusOverdue
		} else {
			st, err := domain.ParseLoanStatus(raw)
			if err != nil {
				writeError(w, r, err)
				return
			}
			filter.Status = st
		}
	}
	var err error
	if filter.ItemID, err = queryInt32(r, "item_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.PatronID, err = queryInt32(r, "patron_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Page, filter.PageSize, err = pagination(r); err != nil {
		writeError(w, r, err)
		return
	}

	loans, total, err := h.loanSvc.ListLoans(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := h.now()
	resp := loanListResponse{Loans: make([]loanResponse, 0, len(loans)), Total: total, Page: filter.Page, PageSize: filter.PageSize}
	for i := range loans {
		resp.Loans = append(resp.Loans, loanResponse{Loan: &loans[i], DisplayStatus: loans[i].DisplayStatus(now)})
	}
	writeJSON(w, http.StatusOK, resp)
}

type rejectBody struct {
	Reason string `json:"reason"`
}

type returnBody struct {
	ReturnDate string `json:"return_date"`
}

// transition handles the body-less lifecycle endpoints.
func (h *LoanHandler) transition(fn func(svc service.LoanService, r *http.Request, actor domain.Actor, id int32) (*domain.Loan, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		loan, err := fn(h.loanSvc, r, ActorFromContext(r.Context()), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.respond(w, http.StatusOK, loan)
	}
}

func (h *LoanHandler) Approve() http.HandlerFunc {
	return h.transition(func(svc service.LoanService, r *http.Request, actor domain.Actor, id int32) (*domain.Loan, error) {
		return svc.Approve(r.Context(), actor, id)
	})
}

func (h *LoanHandler) Activate() http.HandlerFunc {
	return h.transition(func(svc service.LoanService, r *http.Request, actor domain.Actor, id int32) (*domain.Loan, error) {
		return svc.MarkActive(r.Context(), actor, id)
	})
}

func (h *LoanHandler) Reject() http.HandlerFunc {
	return h.transition(func(svc service.LoanService, r *http.Request, actor domain.Actor, id int32) (*domain.Loan, error) {
		var body rejectBody
		if err := decodeJSON(r, &body); err != nil {
			return nil, err
		}
		return svc.Reject(r.Context(), actor, id, body.Reason)
	})
}

func (h *LoanHandler) Cancel() http.HandlerFunc {
	return h.transition(func(svc service.LoanService, r *http.Request, actor domain.Actor, id int32) (*domain.Loan, error) {
		return svc.Cancel(r.Context(), actor, id)
	})
}

func (h *LoanHandler) Return() http.HandlerFunc {
	return h.transition(func(svc service.LoanService, r *http.Request, actor domain.Actor, id int32) (*domain.Loan, error) {
		var body returnBody
		if err := decodeJSON(r, &body); err != nil {
			return nil, err
		}
		var returnDate time.Time
		if body.ReturnDate != "" {
			d, err := utils.ParseDate(body.ReturnDate)
			if err != nil {
				return nil, domain.NewValidationError("return loan", "return_date: %v", err)
			}
			returnDate = d
		}
		return svc.MarkReturned(r.Context(), actor, id, returnDate)
	})
}

func (h *LoanHandler) Lost() http.HandlerFunc {
	return h.transition(func(svc service.LoanService, r *http.Request, actor domain.Actor, id int32) (*domain.Loan, error) {
		return svc.MarkLost(r.Context(), actor, id)
	})
}
