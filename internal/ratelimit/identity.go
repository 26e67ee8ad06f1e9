package ratelimit

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// maxUserAgentLen bounds the user-agent portion of the identifier so
// hostile clients cannot inflate keys.
const maxUserAgentLen = 100

// ClientIdentifier derives the rate-limiting key from request metadata.
// The key deliberately combines IP and user-agent: two browsers behind
// one NAT are limited independently, while the same browser maps to the
// same key on every request. The result is base64-encoded so it is
// opaque and safe to use as a store key.
func ClientIdentifier(r *http.Request) string {
	ip := originatingIP(r)

	userAgent := r.Header.Get("User-Agent")
	if len(userAgent) > maxUserAgentLen {
		userAgent = userAgent[:maxUserAgentLen]
	}

	return base64.StdEncoding.EncodeToString([]byte(ip + ":" + userAgent))
}

// originatingIP extracts a best-effort client IP, preferring proxy
// headers in a fixed order and falling back to a literal "unknown".
func originatingIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
		return cf
	}
	return "unknown"
}
