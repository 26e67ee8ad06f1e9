package http

import (
	"net"
	"net/http"
	"strings"
)

// RemoteIP returns the connection's IP with any port stripped. Used for
// request logging; rate-limit identity uses its own header-derived key.
func RemoteIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// ForwardedIP returns the first syntactically valid IP from
// X-Forwarded-For, or the empty string. Only meaningful behind a
// trusted proxy.
func ForwardedIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	for _, candidate := range strings.Split(xff, ",") {
		candidate = strings.TrimSpace(candidate)
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}
	return ""
}
