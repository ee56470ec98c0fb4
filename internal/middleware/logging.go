package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs every HTTP request with its method, path, status,
// user ID and duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Milliseconds()
		status := ww.Status()
		userID := GetUserID(r.Context()) // empty if pre-auth

		switch {
		case status >= 500:
			slog.Error("HTTP error",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"user_id", userID,
				"duration_ms", duration,
			)
		case status >= 400:
			slog.Warn("HTTP error",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"user_id", userID,
				"duration_ms", duration,
			)
		default:
			slog.Info("HTTP ok",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"user_id", userID,
				"duration_ms", duration,
			)
		}
	})
}
