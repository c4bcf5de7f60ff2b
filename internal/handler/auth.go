package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/auth"
	"github.com/sakif/elibrary/internal/service"
)

// AuthHandler serves the /auth endpoints.
//
//   - HandleRegister        → POST /auth/register
//   - HandleLogin           → POST /auth/login
//   - HandleLogout          → POST /auth/logout (bearer)
//   - HandleForgotPassword  → POST /auth/forgot-password
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates an account. HTTP: POST /auth/register → 201 {user_id}.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"user_id": id})
}

// LoginResponse is the body of a successful login. LastLogin is the login
// before this one, null on the first.
type LoginResponse struct {
	Token     string     `json:"token"`
	UserID    int64      `json:"user_id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	IsAdmin   bool       `json:"is_admin"`
	LastLogin *time.Time `json:"last_login"`
	Exp       int64      `json:"exp"`
}

// HandleLogin exchanges credentials for a bearer token.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     res.Token,
		UserID:    res.User.ID,
		Username:  res.User.Username,
		Email:     res.User.Email,
		IsAdmin:   res.User.IsAdmin,
		LastLogin: res.User.LastLogin,
		Exp:       res.ExpiresAt.Unix(),
	})
}

// HandleLogout revokes the token the request was authenticated with.
// Runs behind auth.RequireAuth, which has already verified it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("Unauthorized"))
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Logged out successfully"})
}

// HandleForgotPassword starts a password reset for a username or email.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UsernameOrEmail string `json:"username_or_email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.UsernameOrEmail); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email sent successfully"})
}

// identity returns the caller's verified identity. Handlers mounted behind
// auth.RequireAuth always have one; the 401 branch guards mis-wired routes.
func identity(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, logger, apperror.Unauthenticated("Unauthorized"))
		return nil, false
	}
	return id, true
}
