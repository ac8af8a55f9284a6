package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
)

// KeyFunc extracts the rate limit key from a request.
// Returns empty string to skip rate limiting for this request.
type KeyFunc func(r *http.Request) string

// RejectFunc writes the response for a rejected request.
type RejectFunc func(w http.ResponseWriter, r *http.Request)

// Middleware returns HTTP middleware that enforces limiter on requests keyed
// by prefix plus keyFunc. Limiter errors fail open. A nil limiter disables
// the check.
func Middleware(limiter Limiter, prefix string, keyFunc KeyFunc, reject RejectFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := limiter.Allow(r.Context(), prefix+":"+key)
			if err != nil {
				logger.Warn("ratelimit: limiter error, allowing request", "error", err, "prefix", prefix)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Retry-After", "1")
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKeyFunc extracts the client IP from RemoteAddr. X-Forwarded-For is not
// trusted since any client can set it.
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
