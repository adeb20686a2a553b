package http

import (
	"context"
	"net/http"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/service"
)

type SanctionHandler struct {
	sanctionSvc service.SanctionService
}

func NewSanctionHandler(sanctionSvc service.SanctionService) *SanctionHandler {
	return &SanctionHandler{sanctionSvc: sanctionSvc}
}

type resolveSanctionBody struct {
	Notes string `json:"notes"`
}

func (h *SanctionHandler) List(w http.ResponseWriter, r *http.Request) {
	patronID, err := queryInt32(r, "patron_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if patronID == nil {
		writeError(w, r, domain.NewValidationError("list sanctions", "patron_id is required"))
		return
	}
	sanctions, err := h.sanctionSvc.ListByPatron(r.Context(), *patronID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sanctions == nil {
		sanctions = []domain.Sanction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sanctions": sanctions})
}

func (h *SanctionHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.sanctionSvc.Fulfill)
}

func (h *SanctionHandler) Forgive(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.sanctionSvc.Forgive)
}

type resolveFunc func(ctx context.Context, actor domain.Actor, sanctionID int32, notes string) (*domain.Sanction, error)

func (h *SanctionHandler) resolve(w http.ResponseWriter, r *http.Request, fn resolveFunc) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body resolveSanctionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	sanction, err := fn(r.Context(), ActorFromContext(r.Context()), id, body.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sanction)
}
