package http

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iho/minibank/internal/adapter/http/handler"
	"github.com/iho/minibank/internal/adapter/http/middleware"
	"github.com/iho/minibank/internal/adapter/repository/file"
	"github.com/iho/minibank/internal/adapter/repository/memory"
	"github.com/iho/minibank/internal/domain"
	"github.com/iho/minibank/internal/infrastructure/auth"
	"github.com/iho/minibank/internal/infrastructure/idgen"
	"github.com/iho/minibank/internal/infrastructure/metrics"
	"github.com/iho/minibank/internal/infrastructure/retry"
	"github.com/iho/minibank/internal/usecase"
)

type testApp struct {
	router http.Handler
	store  *file.Store
	auth   *usecase.AuthUseCase
}

func newTestApp(t *testing.T, opts ...func(*RouterConfig)) *testApp {
	t.Helper()

	logger := zerolog.Nop()
	store := file.NewStore(filepath.Join(t.TempDir(), "accounts.json"))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	retrier := retry.NewRetrier(retry.WithIntervals(time.Millisecond, 5*time.Millisecond, 5*time.Second), retry.OnRetry(m.StoreConflict))
	cookies := middleware.NewCookies(false, time.Hour)

	authUC := usecase.NewAuthUseCase(usecase.AuthConfig{
		Store:      store,
		Sessions:   auth.NewJWTManager("test-secret", time.Hour),
		Retrier:    retrier,
		Metrics:    m,
		Logger:     logger,
		BcryptCost: bcrypt.MinCost,
	})
	ledgerUC := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		Store:       store,
		Retrier:     retrier,
		Idempotency: memory.NewIdempotencyStore(),
		Metrics:     m,
		Logger:      logger,
	})
	reportUC := usecase.NewReportUseCase(store)

	renderer, err := handler.NewRenderer()
	require.NoError(t, err)

	cfg := RouterConfig{
		AuthHandler:    handler.NewAuthHandler(authUC, renderer, cookies, logger),
		LedgerHandler:  handler.NewLedgerHandler(ledgerUC, idgen.NewULIDGenerator(), renderer, cookies, logger),
		ReportHandler:  handler.NewReportHandler(reportUC, renderer, cookies, logger),
		HealthHandler:  handler.NewHealthHandler(handler.Check{Name: "store", Pinger: store}),
		Sessions:       authUC,
		Cookies:        cookies,
		Logger:         logger,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testApp{router: NewRouter(cfg), store: store, auth: authUC}
}

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newBrowser(t *testing.T, app *testApp) *browser {
	t.Helper()

	server := httptest.NewServer(app.router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &browser{
		t:      t,
		server: server,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (int, string, string) {
	b.t.Helper()

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)

	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func (b *browser) get(path string) (int, string, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.server.URL+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, values url.Values) (int, string, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.server.URL+path, strings.NewReader(values.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// follow loads a redirect target and returns the rendered page.
func (b *browser) follow(location string) string {
	b.t.Helper()
	_, _, body := b.get(location)
	return body
}

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"ok"`)
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	app := newTestApp(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = middleware.NewRateLimiter(1, 1)
	})

	req1 := httptest.NewRequest(http.MethodGet, "/login", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	app.router.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusOK, rec1.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/login", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	app.router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusTooManyRequests, rec2.Code)

	// Health checks are never throttled.
	req3 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req3.RemoteAddr = "1.2.3.4:1234"
	rec3 := httptest.NewRecorder()
	app.router.ServeHTTP(rec3, req3)
	require.Equal(t, http.StatusOK, rec3.Code)
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := newTestApp(t).router

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /",
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"GET /register",
		"POST /register",
		"GET /login",
		"POST /login",
		"GET /logout",
		"GET /dashboard",
		"GET /deposit",
		"POST /deposit",
		"GET /withdraw",
		"POST /withdraw",
		"GET /statements",
		"GET /view-all-balances",
		"GET /view-statements",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func TestNewRouter_AnonymousRequestsRedirectToLogin(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/", "/dashboard", "/deposit", "/withdraw", "/statements", "/view-all-balances", "/view-statements", "/logout"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/login", rec.Header().Get("Location"))
		})
	}
}

func TestNewRouter_CustomerScenario(t *testing.T) {
	app := newTestApp(t)
	b := newBrowser(t, app)

	status, loc, _ := b.post("/register", url.Values{"username": {"alice"}, "password": {"pw1"}})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/login", loc)
	assert.Contains(t, b.follow(loc), "Registration successful. Please log in.")

	status, loc, _ = b.post("/register", url.Values{"username": {"alice"}, "password": {"other"}})
	require.Equal(t, http.StatusSeeOther, status)
	assert.Contains(t, b.follow(loc), "Username already exists.")

	status, loc, _ = b.post("/login", url.Values{"username": {"alice"}, "password": {"nope"}})
	require.Equal(t, http.StatusSeeOther, status)
	assert.Contains(t, b.follow(loc), "Invalid username or password.")

	status, loc, _ = b.post("/login", url.Values{"username": {"alice"}, "password": {"pw1"}})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/dashboard", loc)
	assert.Contains(t, b.follow(loc), "$0.00")

	_, loc, _ = b.post("/deposit", url.Values{"amount": {"50.00"}, "idempotency_key": {"k-dep"}})
	require.Equal(t, "/dashboard", loc)
	page := b.follow(loc)
	assert.Contains(t, page, "Deposit successful.")
	assert.Contains(t, page, "$50.00")

	// Resubmitting the same form does not deposit twice.
	_, loc, _ = b.post("/deposit", url.Values{"amount": {"50.00"}, "idempotency_key": {"k-dep"}})
	page = b.follow(loc)
	assert.Contains(t, page, "This request was already processed.")
	assert.Contains(t, page, "$50.00")

	_, loc, _ = b.post("/withdraw", url.Values{"amount": {"20.00"}})
	require.Equal(t, "/dashboard", loc)
	page = b.follow(loc)
	assert.Contains(t, page, "Withdrawal successful.")
	assert.Contains(t, page, "$30.00")

	_, loc, _ = b.post("/withdraw", url.Values{"amount": {"100.00"}})
	require.Equal(t, "/withdraw", loc)
	assert.Contains(t, b.follow(loc), "Invalid withdrawal amount.")

	_, loc, _ = b.post("/deposit", url.Values{"amount": {"-5"}})
	require.Equal(t, "/deposit", loc)
	assert.Contains(t, b.follow(loc), "Invalid deposit amount.")

	_, loc, _ = b.post("/deposit", url.Values{"amount": {"lots"}})
	require.Equal(t, "/deposit", loc)
	assert.Contains(t, b.follow(loc), "Invalid deposit amount.")

	status, _, page = b.get("/statements")
	require.Equal(t, http.StatusOK, status)
	dep := strings.Index(page, "Deposited $50.00")
	wd := strings.Index(page, "Withdrew $20.00")
	require.True(t, dep >= 0 && wd > dep, "expected deposit then withdrawal, got %s", page)
	assert.Equal(t, 1, strings.Count(page, "Deposited"))

	s, err := app.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "30", s.Accounts["alice"].Balance.String())
	assert.Len(t, s.Accounts["alice"].Transactions, 2)

	_, loc, _ = b.get("/view-all-balances")
	require.Equal(t, "/dashboard", loc)
	assert.Contains(t, b.follow(loc), "Admin access required.")

	_, loc, _ = b.get("/logout")
	require.Equal(t, "/login", loc)
	assert.Contains(t, b.follow(loc), "Logged out successfully.")

	_, loc, _ = b.get("/dashboard")
	assert.Equal(t, "/login", loc)
}

func TestNewRouter_AdminViews(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	_, err := app.auth.EnsureAdmin(ctx, "admin", "secret")
	require.NoError(t, err)
	_, err = app.auth.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	b := newBrowser(t, app)
	_, loc, _ := b.post("/login", url.Values{"username": {"admin"}, "password": {"secret"}})
	require.Equal(t, "/dashboard", loc)

	status, _, page := b.get("/view-all-balances")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "alice")
	assert.Contains(t, page, "admin")

	status, _, page = b.get("/view-statements")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "<h3>alice</h3>")
}

func TestNewRouter_DemotedAdminLosesAccess(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	_, err := app.auth.EnsureAdmin(ctx, "admin", "secret")
	require.NoError(t, err)

	b := newBrowser(t, app)
	_, loc, _ := b.post("/login", url.Values{"username": {"admin"}, "password": {"secret"}})
	require.Equal(t, "/dashboard", loc)

	status, _, _ := b.get("/view-all-balances")
	require.Equal(t, http.StatusOK, status)

	_, err = app.auth.SetRole(ctx, "admin", domain.RoleCustomer)
	require.NoError(t, err)

	status, loc, _ = b.get("/view-all-balances")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", loc)

	status, loc, _ = b.get("/view-statements")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", loc)
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
