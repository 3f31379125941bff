// Package network extracts caller details recorded on login attempts and
// audit events.
package network

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// MaxUserAgent bounds the user agent stored with an attempt.
const MaxUserAgent = 256

// GetClientIP extracts the client IP address from the request.
// It checks X-Forwarded-For and X-Real-IP headers for reverse proxy setups,
// and falls back to the host part of RemoteAddr if neither is present.
func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the chain (client IP)
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	// Check X-Real-IP header
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// UserAgent returns the request's user agent cut to MaxUserAgent bytes on a
// rune boundary.
func UserAgent(r *http.Request) string {
	ua := r.UserAgent()
	if len(ua) <= MaxUserAgent {
		return ua
	}
	ua = ua[:MaxUserAgent]
	for len(ua) > 0 && !utf8.ValidString(ua) {
		ua = ua[:len(ua)-1]
	}
	return ua
}
