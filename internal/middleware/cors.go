package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/cors"

	"github.com/sakif/applysync/internal/handler"
)

// MessageOriginRejected is sent to browsers calling from an origin that is not
// on the allow-list.
const MessageOriginRejected = "The CORS policy for this site does not allow access from the specified Origin."

// OriginAllowed reports whether origin may call the API. Requests without an
// Origin header (curl, server-to-server, mobile apps) are always allowed.
func OriginAllowed(allowed []string, origin string) bool {
	return origin == "" || slices.Contains(allowed, origin)
}

// CORS enforces the origin allow-list and emits CORS headers.
//
// TWO LAYERS:
//  1. The guard rejects requests whose Origin is not allowed with a JSON 403.
//     go-chi/cors alone would just omit the headers and still run the handler,
//     which for POST /subscribe means the write happens anyway.
//  2. go-chi/cors answers preflights and sets Access-Control-* headers for
//     allowed origins.
func CORS(allowed []string, logger *slog.Logger) func(http.Handler) http.Handler {
	headers := cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return OriginAllowed(allowed, origin)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return func(next http.Handler) http.Handler {
		withHeaders := headers(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if !OriginAllowed(allowed, origin) {
				logger.Warn("origin rejected",
					slog.String("origin", origin),
					slog.String("path", r.URL.Path),
				)
				handler.WriteJSON(w, http.StatusForbidden, handler.Response{
					Success: false,
					Message: MessageOriginRejected,
				})
				return
			}
			withHeaders.ServeHTTP(w, r)
		})
	}
}
