package http

import (
	"net/http"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/service"
)

type AuthHandler struct {
	authSvc service.AuthService
}

func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Email == "" || body.Password == "" {
		writeError(w, r, domain.NewValidationError("login", "email and password are required"))
		return
	}
	user, access, refresh, err := h.authSvc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh, User: user})
}

// Refresh exchanges the refresh token from the Authorization header, which
// the auth middleware has already checked.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, _ := extractToken(r)
	access, refresh, err := h.authSvc.RefreshToken(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh})
}
