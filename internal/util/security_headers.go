package util

import (
	"net/http"
	"strings"
)

// WithSecurityHeaders adds security response headers. API responses get a
// deny-all CSP; portal and marketing pages need a policy that still allows
// same-origin assets, so page handlers use WithPageSecurityHeaders instead.
func WithSecurityHeaders(next http.Handler) http.Handler {
	return securityHeaders("default-src 'none'; frame-ancestors 'none'; base-uri 'none'", next)
}

// WithPageSecurityHeaders adds security headers for server-rendered pages.
func WithPageSecurityHeaders(next http.Handler) http.Handler {
	return securityHeaders("default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'; base-uri 'none'", next)
}

func securityHeaders(csp string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")
		w.Header().Set("Content-Security-Policy", csp)

		// Only emit HSTS when request is over HTTPS (direct or forwarded).
		if r.TLS != nil || strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https") {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
