package internal

import (
	"log/slog"
	"net/http"

	"github.com/sebest/xff"
)

// GetRequestLogger decorates base with the request metadata worth keeping
// on every line logged while serving r.
func GetRequestLogger(base *slog.Logger, r *http.Request) *slog.Logger {
	return base.With(
		"host", r.Host,
		"method", r.Method,
		"path", r.URL.Path,
		"user_agent", r.UserAgent(),
		"remote_addr", xff.GetRemoteAddr(r),
		"x-forwarded-for", r.Header.Get("X-Forwarded-For"),
		"x-real-ip", r.Header.Get("X-Real-Ip"),
	)
}
