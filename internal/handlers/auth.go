package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/natours/api/internal/auth"
	"github.com/natours/api/internal/services"
	"github.com/natours/api/internal/validation"
	"github.com/natours/api/types"
)

// AuthHandler provides the signup, login and password endpoints.
type AuthHandler struct {
	Responder
	access    *auth.AccessControl
	users     *services.UserService
	accounts  *services.AccountService
	publicURL string
}

// NewAuthHandler constructs an AuthHandler. publicURL roots links sent by
// email; when empty it is derived from the request.
func NewAuthHandler(rs Responder, access *auth.AccessControl, users *services.UserService, accounts *services.AccountService, publicURL string) *AuthHandler {
	return &AuthHandler{
		Responder: rs,
		access:    access,
		users:     users,
		accounts:  accounts,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/forgotPassword", h.ForgotPassword)
	r.Patch("/resetPassword/{token}", h.ResetPassword)
	r.With(h.guard(h.access.Protect())).Patch("/updateMyPassword", h.UpdateMyPassword)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// MessageResponse acknowledges requests with nothing else to return.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Signup creates a user account and logs it in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.users.Signup(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sendToken(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	principal, err := h.access.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		h.authFailure(w, r, err)
		return
	}
	h.sendPrincipalToken(w, r, principal)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.accounts.ForgotPassword(r.Context(), req.Email, h.baseURL(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Token sent to email!"})
}

// ResetPassword sets a new password with a single-use reset token.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}
	principal, err := h.access.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password)
	if err != nil {
		h.authFailure(w, r, err)
		return
	}
	h.sendPrincipalToken(w, r, principal)
}

func (h *AuthHandler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req UpdatePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}
	principal, err := h.access.ChangePassword(r.Context(), principal.ID, req.PasswordCurrent, req.Password)
	if err != nil {
		h.authFailure(w, r, err)
		return
	}
	h.sendPrincipalToken(w, r, principal)
}

func (h *AuthHandler) sendPrincipalToken(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	user, err := h.users.Get(r.Context(), principal.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sendToken(w, r, http.StatusOK, user)
}

func (h *AuthHandler) sendToken(w http.ResponseWriter, r *http.Request, status int, user types.User) {
	token, err := h.access.IssueToken(user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, status, TokenResponse{
		Status: statusSuccess,
		Token:  token,
		Data:   map[string]any{"user": user},
	})
}

func (h *AuthHandler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
