package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/sakif/applysync/internal/handler"
)

// Recover turns a panic in any downstream handler into a logged JSON 500.
//
// One bad request must not take the whole process down; the panic value and
// stack go to the log, the client gets the standard envelope. In devMode the
// panic value is echoed as "error".
//
// http.ErrAbortHandler is re-panicked: net/http uses it to abort a response
// on purpose and handles it quietly.
func Recover(logger *slog.Logger, devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("unhandled panic",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)

				resp := handler.Response{Success: false, Message: handler.MessageInternal}
				if devMode {
					resp.Error = fmt.Sprint(rec)
				}
				handler.WriteJSON(w, http.StatusInternalServerError, resp)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
