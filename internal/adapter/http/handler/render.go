package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/iho/minibank/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	pageRegister      = "register.html"
	pageLogin         = "login.html"
	pageDashboard     = "dashboard.html"
	pageAmount        = "amount.html"
	pageStatements    = "statements.html"
	pageAllBalances   = "all_balances.html"
	pageAllStatements = "all_statements.html"
)

var pages = []string{
	pageRegister,
	pageLogin,
	pageDashboard,
	pageAmount,
	pageStatements,
	pageAllBalances,
	pageAllStatements,
}

// view is the data every page template receives.
type view struct {
	Title    string
	Flash    string
	Identity *domain.Identity
	Data     any
}

// Renderer renders HTML pages from the embedded templates.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses every page together with the shared layout.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"money": domain.FormatMoney,
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		templates[page] = tmpl
	}

	return &Renderer{templates: templates}, nil
}

// render executes page into a buffer first so template errors never send a partial page.
func (r *Renderer) render(w http.ResponseWriter, status int, page string, v view) error {
	tmpl, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("unknown template %s", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", v); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
