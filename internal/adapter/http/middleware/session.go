package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/minibank/internal/domain"
)

// ContextKey is the type for context keys
type ContextKey string

// IdentityContextKey is the context key for the signed-in identity.
const IdentityContextKey ContextKey = "identity"

// Messages shown by the session gate.
const (
	MsgAdminRequired = "Admin access required."
)

// SessionResolver resolves a session token to an identity.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*domain.Identity, error)
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// IdentityFromContext extracts the signed-in identity from ctx.
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(*domain.Identity)
	return identity, ok && identity != nil
}

// RequireSession redirects to /login unless the request carries a valid session.
func RequireSession(resolver SessionResolver, cookies *Cookies, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.ResolveSession(r.Context(), cookies.SessionToken(r))
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthenticated) {
					logger.Error().Err(err).Str("path", r.URL.Path).Msg("failed to resolve session")
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}

				cookies.ClearSession(w)
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin sends non-admin identities back to the dashboard.
// It must run after RequireSession.
func RequireAdmin(cookies *Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			if !identity.Role.CanViewAll() {
				cookies.SetFlash(w, MsgAdminRequired)
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
