package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/minibank/internal/adapter/http/middleware"
	"github.com/iho/minibank/internal/domain"
)

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	base
	auth AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth AuthService, renderer *Renderer, cookies *middleware.Cookies, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		base: base{renderer: renderer, cookies: cookies, logger: logger},
		auth: auth,
	}
}

// Home handles GET /.
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	redirect(w, r, "/login")
}

// RegisterForm handles GET /register.
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, pageRegister, "Register", nil)
}

// Register handles POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectWithFlash(w, r, "/register", MsgInvalidCredentials)
		return
	}

	_, err := h.auth.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, "/login", MsgRegistered)
	case errors.Is(err, domain.ErrUsernameTaken):
		h.redirectWithFlash(w, r, "/register", MsgUsernameTaken)
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.redirectWithFlash(w, r, "/register", MsgInvalidCredentials)
	default:
		h.internalError(w, r, err)
	}
}

// LoginForm handles GET /login.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, pageLogin, "Login", nil)
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectWithFlash(w, r, "/login", MsgInvalidCredentials)
		return
	}

	token, _, err := h.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.redirectWithFlash(w, r, "/login", MsgInvalidCredentials)
			return
		}
		h.internalError(w, r, err)
		return
	}

	h.cookies.SetSession(w, token)
	redirect(w, r, "/dashboard")
}

// Logout handles GET /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), h.cookies.SessionToken(r)); err != nil {
		h.logger.Warn().Err(err).Msg("failed to destroy session")
	}

	h.cookies.ClearSession(w)
	h.redirectWithFlash(w, r, "/login", MsgLoggedOut)
}
