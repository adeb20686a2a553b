package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// decodeJSON reads a JSON body. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return domain.NewValidationError("decode request", "cannot read body")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domain.NewValidationError("decode request", "malformed JSON body")
	}
	return nil
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindInvalidTransition, domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps ledger and auth errors to HTTP responses. Storage failures
// are logged and reported without their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, service.ErrAccountDisabled):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
		return
	}

	kind := domain.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		actor := ActorFromContext(r.Context())
		logger.WithActor(actor.UserID, string(actor.Role), actor.RequestID).Error("Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		if kind == "" {
			kind = domain.KindPersistence
		}
		writeJSON(w, status, errorResponse{Error: "internal error", Kind: string(kind)})
		return
	}

	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		msg = de.Message
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: string(kind)})
}

func pathID(r *http.Request, name string) (int32, error) {
	raw := muxVar(r, name)
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("parse path", "invalid %s %q", name, raw)
	}
	return int32(id), nil
}

func queryInt32(r *http.Request, name string) (*int32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return nil, domain.NewValidationError("parse query", "invalid %s %q", name, raw)
	}
	out := int32(v)
	return &out, nil
}

// pagination reads page and page_size, defaulting to the first page of 20.
func pagination(r *http.Request) (int32, int32, error) {
	page, pageSize := int32(1), int32(20)
	p, err := queryInt32(r, "page")
	if err != nil {
		return 0, 0, err
	}
	if p != nil && *p > 0 {
		page = *p
	}
	ps, err := queryInt32(r, "page_size")
	if err != nil {
		return 0, 0, err
	}
	if ps != nil && *ps > 0 && *ps <= 100 {
		pageSize = *ps
	}
	return page, pageSize, nil
}
