package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/minibank/internal/adapter/http/handler"
	"github.com/iho/minibank/internal/adapter/http/middleware"
	"github.com/iho/minibank/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AuthHandler   *handler.AuthHandler
	LedgerHandler *handler.LedgerHandler
	ReportHandler *handler.ReportHandler
	HealthHandler *handler.HealthHandler

	Sessions middleware.SessionResolver
	Cookies  *middleware.Cookies
	Logger   zerolog.Logger

	// Optional
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	RateLimiter    *middleware.RateLimiter
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// Public pages
	r.Get("/", cfg.AuthHandler.Home)
	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		r.Get("/register", cfg.AuthHandler.RegisterForm)
		r.Post("/register", cfg.AuthHandler.Register)
		r.Get("/login", cfg.AuthHandler.LoginForm)
		r.Post("/login", cfg.AuthHandler.Login)
	})

	// Signed-in pages
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(cfg.Sessions, cfg.Cookies, cfg.Logger))

		r.Get("/logout", cfg.AuthHandler.Logout)
		r.Get("/dashboard", cfg.ReportHandler.Dashboard)
		r.Get("/statements", cfg.ReportHandler.Statements)

		r.Get("/deposit", cfg.LedgerHandler.DepositForm)
		r.Post("/deposit", cfg.LedgerHandler.Deposit)
		r.Get("/withdraw", cfg.LedgerHandler.WithdrawForm)
		r.Post("/withdraw", cfg.LedgerHandler.Withdraw)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(cfg.Cookies))

			r.Get("/view-all-balances", cfg.ReportHandler.AllBalances)
			r.Get("/view-statements", cfg.ReportHandler.AllStatements)
		})
	})

	return r
}
