package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/service"
	"github.com/ploop3/Natours/pkg/httputil"
	"github.com/ploop3/Natours/pkg/middleware"
)

const loggedOutTTL = 10 * time.Second

// AuthHandler serves signup, login and the password flows.
type AuthHandler struct {
	service   *service.AuthService
	cookieTTL time.Duration
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. Session cookies live for cookieTTL.
func NewAuthHandler(svc *service.AuthService, cookieTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookieTTL: cookieTTL, logger: logger}
}

type sessionResponse struct {
	Token string            `json:"token"`
	User  domain.PublicUser `json:"user"`
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest is the body of POST /users/forgotPassword.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Signup handles POST /api/v1/users/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if !decode(w, r, &in) {
		return
	}
	sess, err := h.service.Signup(r.Context(), &in, baseURL(r)+"/me")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	h.sendSession(w, r, http.StatusCreated, sess)
}

// Login handles POST /api/v1/users/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if !decode(w, r, &in) {
		return
	}
	sess, err := h.service.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	h.sendSession(w, r, http.StatusOK, sess)
}

// Logout handles GET /api/v1/users/logout by overwriting the token cookie
// with a short-lived placeholder.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "loggedout",
		Path:     "/",
		Expires:  time.Now().Add(loggedOutTTL),
		HttpOnly: true,
		Secure:   middleware.Scheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{})
}

// ForgotPassword handles POST /api/v1/users/forgotPassword.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in ForgotPasswordRequest
	if !decode(w, r, &in) {
		return
	}
	resetURL := func(token string) string {
		return baseURL(r) + "/api/v1/users/resetPassword/" + token
	}
	if err := h.service.ForgotPassword(r.Context(), in.Email, resetURL); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"message": "token sent to email"})
}

// ResetPassword handles PATCH /api/v1/users/resetPassword/{token}.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in service.ResetPasswordInput
	if !decode(w, r, &in) {
		return
	}
	sess, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), &in)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	h.sendSession(w, r, http.StatusOK, sess)
}

// UpdatePassword handles PATCH /api/v1/users/updateMyPassword.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in service.UpdatePasswordInput
	if !decode(w, r, &in) {
		return
	}
	sess, err := h.service.UpdatePassword(r.Context(), u, &in)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	h.sendSession(w, r, http.StatusOK, sess)
}

// sendSession sets the token cookie and returns the token with the user.
func (h *AuthHandler) sendSession(w http.ResponseWriter, r *http.Request, status int, sess *service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookieTTL),
		HttpOnly: true,
		Secure:   middleware.Scheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteData(w, status, sessionResponse{Token: sess.Token, User: sess.User.Public()})
}

func baseURL(r *http.Request) string {
	return middleware.Scheme(r) + "://" + r.Host
}
