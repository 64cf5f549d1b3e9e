package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/minibank/internal/adapter/http/middleware"
)

// ReportHandler handles balance and statement pages.
type ReportHandler struct {
	base
	reports ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports ReportService, renderer *Renderer, cookies *middleware.Cookies, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		base:    base{renderer: renderer, cookies: cookies, logger: logger},
		reports: reports,
	}
}

// Dashboard handles GET /dashboard.
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	acc, err := h.reports.Dashboard(r.Context(), mustIdentity(r).Username)
	if err != nil {
		h.handleLookupError(w, r, err)
		return
	}

	h.page(w, r, pageDashboard, "Dashboard", acc)
}

// Statements handles GET /statements.
func (h *ReportHandler) Statements(w http.ResponseWriter, r *http.Request) {
	statements, err := h.reports.Statements(r.Context(), mustIdentity(r).Username)
	if err != nil {
		h.handleLookupError(w, r, err)
		return
	}

	h.page(w, r, pageStatements, "Statements", statements)
}

// AllBalances handles GET /view-all-balances.
func (h *ReportHandler) AllBalances(w http.ResponseWriter, r *http.Request) {
	lines, err := h.reports.AllBalances(r.Context(), mustIdentity(r))
	if err != nil {
		h.handleLookupError(w, r, err)
		return
	}

	h.page(w, r, pageAllBalances, "All balances", lines)
}

// AllStatements handles GET /view-statements.
func (h *ReportHandler) AllStatements(w http.ResponseWriter, r *http.Request) {
	statements, err := h.reports.AllStatements(r.Context(), mustIdentity(r))
	if err != nil {
		h.handleLookupError(w, r, err)
		return
	}

	h.page(w, r, pageAllStatements, "All statements", statements)
}
