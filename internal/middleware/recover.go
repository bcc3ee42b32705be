package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Recoverer turns a panic in a handler into the regular error page.
//
// The panic value and stack are logged here; onPanic then renders the 500
// page the same way as any other error. If the handler had already started
// the response nothing more is written. http.ErrAbortHandler is re-panicked
// so net/http can abort the connection as asked.
func Recoverer(logger *slog.Logger, onPanic ErrorFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic recovered",
					slog.String("request_id", chimiddleware.GetReqID(r.Context())),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
				if ww.Status() == 0 {
					onPanic(ww, r, fmt.Errorf("panic: %v", rec))
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
