package middleware

import (
	"encoding/base64"
	"net/http"
	"time"
)

// Cookie names.
const (
	SessionCookieName = "minibank_session"
	FlashCookieName   = "minibank_flash"
)

// Cookies writes and reads the session and flash cookies.
type Cookies struct {
	Secure     bool
	SessionTTL time.Duration
}

// NewCookies creates a new Cookies.
func NewCookies(secure bool, sessionTTL time.Duration) *Cookies {
	return &Cookies{Secure: secure, SessionTTL: sessionTTL}
}

// SessionToken returns the session token carried by r, or "".
func (c *Cookies) SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSession stores token in the session cookie.
func (c *Cookies) SetSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession expires the session cookie.
func (c *Cookies) ClearSession(w http.ResponseWriter) {
	c.expire(w, SessionCookieName)
}

// SetFlash queues a one-shot message for the next page render.
func (c *Cookies) SetFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(message)),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash returns the queued message, if any, and clears it.
func (c *Cookies) PopFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil {
		return ""
	}
	c.expire(w, FlashCookieName)

	message, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(message)
}

func (c *Cookies) expire(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
