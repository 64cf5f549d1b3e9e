package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/minibank/internal/adapter/http/middleware"
	"github.com/iho/minibank/internal/domain"
)

var testCookies = middleware.NewCookies(false, time.Hour)

var testRenderer = mustRenderer()

func mustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

func newBase() base {
	return base{renderer: testRenderer, cookies: testCookies, logger: zerolog.Nop()}
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func asUser(req *http.Request, username string, role domain.Role) *http.Request {
	identity := &domain.Identity{Username: username, Role: role}
	return req.WithContext(middleware.WithIdentity(req.Context(), identity))
}

// flashOf decodes the flash cookie set on rec.
func flashOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.FlashCookieName && c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return testCookies.PopFlash(httptest.NewRecorder(), req)
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location, flash string) {
	t.Helper()

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
	if got := flashOf(t, rec); got != flash {
		t.Fatalf("expected flash %q, got %q", flash, got)
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	payload := map[string]string{"status": "ok"}

	writeJSON(rr, zerolog.Nop(), http.StatusCreated, payload)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}

	var decoded map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if decoded["status"] != "ok" {
		t.Fatalf("expected payload to round-trip, got %+v", decoded)
	}
}

func TestWriteJSON_LogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	rr := httptest.NewRecorder()

	writeJSON(rr, zerolog.New(&buf), http.StatusOK, map[string]any{"bad": make(chan int)})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if out := buf.String(); !strings.Contains(out, "failed to encode JSON response") {
		t.Fatalf("expected encode failure to be logged, got %q", out)
	}
}

func TestHandleLookupError(t *testing.T) {
	b := newBase()

	tests := []struct {
		name     string
		err      error
		status   int
		location string
	}{
		{"account deleted", domain.ErrAccountNotFound, http.StatusSeeOther, "/login"},
		{"forbidden", domain.ErrForbidden, http.StatusSeeOther, "/dashboard"},
		{"store failure", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			b.handleLookupError(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil), tt.err)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if got := rec.Header().Get("Location"); got != tt.location {
				t.Fatalf("expected location %q, got %q", tt.location, got)
			}
		})
	}
}

func TestPageRendersFlashAndIdentity(t *testing.T) {
	b := newBase()

	req := asUser(httptest.NewRequest(http.MethodGet, "/statements", nil), "alice", domain.RoleCustomer)
	flashRec := httptest.NewRecorder()
	testCookies.SetFlash(flashRec, "Deposit successful.")
	for _, c := range flashRec.Result().Cookies() {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	b.page(rec, req, pageStatements, "Statements", []string{"[t] Deposited $50.00"})

	body := rec.Body.String()
	for _, want := range []string{"Deposit successful.", "alice", "Deposited $50.00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected page to contain %q, got %s", want, body)
		}
	}
	if strings.Contains(body, "/view-all-balances") {
		t.Fatal("customer page must not link admin views")
	}
}

func TestRendererEscapesContent(t *testing.T) {
	rec := httptest.NewRecorder()
	err := testRenderer.render(rec, http.StatusOK, pageStatements, view{
		Title: "Statements",
		Data:  []string{"<script>alert(1)</script>"},
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(rec.Body.String(), "<script>") {
		t.Fatal("expected transaction text to be escaped")
	}
}

func TestRendererUnknownPage(t *testing.T) {
	if err := testRenderer.render(httptest.NewRecorder(), http.StatusOK, "missing.html", view{}); err == nil {
		t.Fatal("expected error for unknown page")
	}
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }
