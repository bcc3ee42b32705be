package handler

// ERROR RESPONSES:
// Every handler in this package has the shape
//
//	func(w http.ResponseWriter, r *http.Request) error
//
// and is registered through ErrorResponder.Wrap. A returned error is never
// written by the handler itself: Wrap hands it to RenderError, the one place
// that maps domain errors to a status code and an error page.
//
// ERROR MAPPING (apperror.StatusCode):
//   apperror.ErrNotFound          → 404, "page-not-found" view
//   apperror.ErrBadRequest        → 400, "error" view
//   apperror.ErrMethodNotAllowed  → 405, "error" view
//   apperror.ErrRateLimited       → 429, "error" view
//   *http.MaxBytesError           → 413, "error" view
//   anything else                 → 500, "error" view, logged
//
// The raw error text is never shown to the client. It might contain SQL or
// file paths; the page only carries a generic message and the request id,
// which matches the id in the server log line.

import (
	"fmt"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/library-catalog/internal/apperror"
)

// Page titles and messages of the error views.
const (
	titleNotFound   = "Not Found!"
	titleError      = "Error!"
	messageNotFound = "Page Not Found!"
	messageGeneric  = "Something went wrong!"
)

// HandlerFunc is an http.HandlerFunc that reports failure by returning it.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorResponder renders error pages.
type ErrorResponder struct {
	views  *Renderer
	logger *slog.Logger
}

// NewErrorResponder creates an ErrorResponder.
func NewErrorResponder(views *Renderer, logger *slog.Logger) *ErrorResponder {
	return &ErrorResponder{views: views, logger: logger}
}

// Wrap adapts h to http.HandlerFunc, sending any returned error to RenderError.
func (e *ErrorResponder) Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			e.RenderError(w, r, err)
		}
	}
}

// RenderError responds to r with the error page for err.
func (e *ErrorResponder) RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.StatusCode(err)
	requestID := chimiddleware.GetReqID(r.Context())

	if status >= http.StatusInternalServerError {
		e.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	} else {
		e.logger.Debug("request rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	view, data := ViewError, PageData{
		Title:     titleError,
		Message:   messageGeneric,
		Status:    status,
		RequestID: requestID,
	}
	switch status {
	case http.StatusNotFound:
		view = ViewNotFound
		data.Title = titleNotFound
		data.Message = messageNotFound
	case http.StatusBadRequest:
		data.Message = "The submitted form could not be read."
	case http.StatusMethodNotAllowed:
		data.Message = "Method Not Allowed"
	case http.StatusTooManyRequests:
		data.Message = "Too many requests, please slow down."
	case http.StatusRequestEntityTooLarge:
		data.Message = "The submitted form is too large."
	}

	if err := e.views.Render(w, status, view, data); err != nil {
		// The error page itself is broken; fall back to plain text.
		e.logger.Error("failed to render error page",
			slog.String("view", view),
			slog.String("error", err.Error()),
		)
		http.Error(w, data.Message, status)
	}
}

// NotFound is the router's handler for unmatched paths.
func (e *ErrorResponder) NotFound(w http.ResponseWriter, r *http.Request) {
	e.RenderError(w, r, apperror.NotFound("page", r.URL.Path))
}

// MethodNotAllowed is the router's handler for a known path with the wrong method.
func (e *ErrorResponder) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	e.RenderError(w, r, fmt.Errorf("%s %s: %w", r.Method, r.URL.Path, apperror.ErrMethodNotAllowed))
}
