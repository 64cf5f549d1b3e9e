package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/minibank/internal/adapter/http/middleware"
	"github.com/iho/minibank/internal/domain"
)

// Flash messages.
const (
	MsgUsernameTaken       = "Username already exists."
	MsgRegistered          = "Registration successful. Please log in."
	MsgInvalidCredentials  = "Invalid username or password."
	MsgInvalidDeposit      = "Invalid deposit amount."
	MsgDepositSuccessful   = "Deposit successful."
	MsgInvalidWithdrawal   = "Invalid withdrawal amount."
	MsgWithdrawSuccessful  = "Withdrawal successful."
	MsgLoggedOut           = "Logged out successfully."
	MsgAlreadyProcessed    = "This request was already processed."
	msgInternalServerError = "internal server error"
)

// base carries what every page handler needs.
type base struct {
	renderer *Renderer
	cookies  *middleware.Cookies
	logger   zerolog.Logger
}

// writeJSON writes a JSON response. The status is already sent when encoding
// fails, so the error is only logged.
func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Int("status", status).Msg("failed to encode JSON response")
	}
}

// redirect sends a 303 so the browser follows with GET.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithFlash queues message and redirects.
func (b *base) redirectWithFlash(w http.ResponseWriter, r *http.Request, path, message string) {
	b.cookies.SetFlash(w, message)
	redirect(w, r, path)
}

// page renders a full page, attaching the pending flash and the signed-in identity.
func (b *base) page(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	v := view{
		Title:    title,
		Flash:    b.cookies.PopFlash(w, r),
		Identity: identity,
		Data:     data,
	}

	if err := b.renderer.render(w, http.StatusOK, page, v); err != nil {
		b.internalError(w, r, err)
	}
}

// internalError logs err and answers 500.
func (b *base) internalError(w http.ResponseWriter, r *http.Request, err error) {
	b.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	http.Error(w, msgInternalServerError, http.StatusInternalServerError)
}

// accountGone ends a session whose account no longer exists.
func (b *base) accountGone(w http.ResponseWriter, r *http.Request) {
	b.cookies.ClearSession(w)
	redirect(w, r, "/login")
}

// handleLookupError covers errors shared by every signed-in page.
func (b *base) handleLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		b.accountGone(w, r)
	case errors.Is(err, domain.ErrForbidden):
		b.redirectWithFlash(w, r, "/dashboard", middleware.MsgAdminRequired)
	default:
		b.internalError(w, r, err)
	}
}

// mustIdentity returns the identity placed by RequireSession.
func mustIdentity(r *http.Request) domain.Identity {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return domain.Identity{}
	}
	return *identity
}
