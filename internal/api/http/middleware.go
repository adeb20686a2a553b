package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"municipal-library-backend/internal/config"
	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/security"
)

const requestIDHeader = "X-Request-ID"

// RequestContext starts every request with an anonymous actor carrying the
// request id and network metadata. Auth fills in the user later.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		actor := domain.Actor{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
			RequestID: reqID,
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// AccessLog logs one line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		actor := ActorFromContext(r.Context())
		logger.WithActor(actor.UserID, string(actor.Role), actor.RequestID).Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", actor.IPAddress,
		)
	})
}

type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

// endpointKey builds the "METHOD /template" key used by config.EndpointSecurityConfig.
func endpointKey(r *http.Request) string {
	tmpl := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if t, err := route.GetPathTemplate(); err == nil {
			tmpl = t
		}
	}
	return r.Method + " " + tmpl
}

// Handler authenticates and authorizes requests according to the route's security level
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level := config.GetSecurityLevel(endpointKey(r))

		// Public endpoint - skip auth
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authorization token is not provided"})
			return
		}

		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token: " + err.Error()})
			return
		}

		if status, msg := checkSecurityLevel(level, claims); status != 0 {
			writeJSON(w, status, errorResponse{Error: msg})
			return
		}

		actor := ActorFromContext(r.Context())
		uid := claims.UserID
		actor.UserID = &uid
		actor.Role = claims.Role
		actor.PatronID = claims.PatronID
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func extractToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	// Remove Bearer prefix if present
	if len(header) > 7 && strings.ToUpper(header[0:7]) == "BEARER " {
		header = header[7:]
	}
	return header, header != ""
}

func checkSecurityLevel(level config.SecurityLevel, claims *security.UserClaims) (int, string) {
	switch level {
	case config.SecurityRefresh:
		if claims.Type != security.TokenTypeRefresh {
			return http.StatusForbidden, "refresh token required"
		}
		return 0, ""
	}

	if claims.Type != security.TokenTypeAccess {
		return http.StatusForbidden, "access token required"
	}
	switch level {
	case config.SecurityStaff:
		if !claims.Role.IsStaff() {
			return http.StatusForbidden, "staff role required"
		}
	case config.SecurityAdmin:
		if claims.Role != domain.UserRoleAdmin {
			return http.StatusForbidden, "admin role required"
		}
	}
	return 0, ""
}
