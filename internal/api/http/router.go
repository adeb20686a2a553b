package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"municipal-library-backend/internal/security"
	"municipal-library-backend/internal/service"
)

type Services struct {
	Loans     service.LoanService
	Items     service.ItemService
	Sanctions service.SanctionService
	Audit     service.AuditService
	Auth      service.AuthService
}

// NewRouter wires every REST endpoint. Route templates must match the keys
// in config.EndpointSecurityConfig.
func NewRouter(svcs Services, tokenManager security.TokenManager, db Pinger) *mux.Router {
	loans := NewLoanHandler(svcs.Loans)
	items := NewItemHandler(svcs.Items)
	sanctions := NewSanctionHandler(svcs.Sanctions)
	audit := NewAuditHandler(svcs.Audit)
	auth := NewAuthHandler(svcs.Auth)
	health := NewHealthHandler(db)

	r := mux.NewRouter()
	r.Use(RequestContext, AccessLog, NewAuthMiddleware(tokenManager).Handler)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})

	r.HandleFunc("/healthz", health.Check).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/login", auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", auth.Refresh).Methods(http.MethodPost)

	api.HandleFunc("/loans", loans.Create).Methods(http.MethodPost)
	api.HandleFunc("/loans", loans.List).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}", loans.Get).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}/overdue", loans.Overdue).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}/approve", loans.Approve()).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}/reject", loans.Reject()).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}/activate", loans.Activate()).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}/cancel", loans.Cancel()).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}/return", loans.Return()).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}/lost", loans.Lost()).Methods(http.MethodPost)

	api.HandleFunc("/items", items.Create).Methods(http.MethodPost)
	api.HandleFunc("/items", items.List).Methods(http.MethodGet)
	api.HandleFunc("/items/{id}", items.Get).Methods(http.MethodGet)

	api.HandleFunc("/sanctions", sanctions.List).Methods(http.MethodGet)
	api.HandleFunc("/sanctions/{id}/fulfill", sanctions.Fulfill).Methods(http.MethodPost)
	api.HandleFunc("/sanctions/{id}/forgive", sanctions.Forgive).Methods(http.MethodPost)

	api.HandleFunc("/audit", audit.List).Methods(http.MethodGet)

	return r
}
