// Package handler contains the HTTP request handlers of the catalog.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming request (path params, form fields)
// 2. Call the service layer
// 3. Render a view or redirect
//
// Handlers never talk to storage directly and never decide business rules.
// Failures are returned as errors and turned into a page by ErrorResponder.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sakif/library-catalog/internal/apperror"
	"github.com/sakif/library-catalog/internal/model"
)

// View names. Each one is a file <name>.html under the template root that
// defines "content" for the shared "base" layout.
const (
	ViewIndex    = "books/index"
	ViewNew      = "books/new-book"
	ViewUpdate   = "books/update-book"
	ViewShow     = "books/show"
	ViewDelete   = "books/delete"
	ViewNotFound = "page-not-found"
	ViewError    = "error"
)

var views = []string{ViewIndex, ViewNew, ViewUpdate, ViewShow, ViewDelete, ViewNotFound, ViewError}

// partials are parsed into every view.
var partials = []string{"base.html", "books/form-fields.html"}

// PageData is the value every view is executed with. Views read only the
// fields they need; keeping one type means a view never fails on a field
// another handler did not set.
type PageData struct {
	Title string

	// listing
	Books     []model.Book
	Page      int
	PageLinks []int
	Query     string
	Searching bool

	// single book and forms
	Book   *model.Book
	Form   model.BookInput
	Errors apperror.ValidationErrors

	// error pages
	Message   string
	Status    int
	RequestID string
}

// Renderer executes the parsed views.
//
// TEMPLATE COMPOSITION:
// Every view is parsed together with base.html, so ExecuteTemplate("base")
// draws the layout and pulls in the view's {{define "content"}} block.
// The set is parsed once at startup; Reload swaps in a fresh set, which is
// what the development-mode watcher calls.
type Renderer struct {
	fsys   fs.FS
	logger *slog.Logger

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewRenderer parses every view from fsys.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{fsys: fsys, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses every view. On failure the previous set stays active.
func (r *Renderer) Reload() error {
	parsed := make(map[string]*template.Template, len(views))
	for _, name := range views {
		patterns := append(append([]string(nil), partials...), name+".html")
		tmpl, err := template.ParseFS(r.fsys, patterns...)
		if err != nil {
			return fmt.Errorf("parsing view %s: %w", name, err)
		}
		parsed[name] = tmpl
	}

	r.mu.Lock()
	r.templates = parsed
	r.mu.Unlock()
	return nil
}

// Render writes view name with the given status.
//
// The page is executed into a buffer first: if execution fails halfway, no
// partial HTML and no status line have been sent yet, so the caller can
// still respond with an error page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data PageData) error {
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("view %q does not exist", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("rendering view %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		// Headers are gone; all we can do is log it.
		r.logger.Warn("failed to write response body",
			slog.String("view", name),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
