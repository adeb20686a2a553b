package http

import (
	"net/http"
	"time"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/service"
	"municipal-library-backend/internal/utils"
)

type AuditHandler struct {
	auditSvc service.AuditService
}

func NewAuditHandler(auditSvc service.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// parseTimeParam accepts RFC 3339 timestamps or plain yyyy-mm-dd dates.
func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	d, err := utils.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "list audit"
	q := r.URL.Query()
	filter := domain.AuditFilter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}

	var err error
	if filter.ActorID, err = queryInt32(r, "actor_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.From, err = parseTimeParam(q.Get("from")); err != nil {
		writeError(w, r, domain.NewValidationError(op, "from: %v", err))
		return
	}
	if filter.To, err = parseTimeParam(q.Get("to")); err != nil {
		writeError(w, r, domain.NewValidationError(op, "to: %v", err))
		return
	}
	if limit, err := queryInt32(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	} else if limit != nil {
		filter.Limit = *limit
	}
	if offset, err := queryInt32(r, "offset"); err != nil {
		writeError(w, r, err)
		return
	} else if offset != nil {
		filter.Offset = *offset
	}

	entries, err := h.auditSvc.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
