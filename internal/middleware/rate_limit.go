package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/calebmorton/inkwell/pkg/http"
)

// RateLimitConfig holds the edge rate limit configuration. This is a
// coarse per-IP shield in front of the routers; the per-operation
// lockout logic lives in the ratelimit package.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit caps public auth endpoints at 10 requests per
// minute per IP.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 10}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteRateLimited(w, 60)
		}),
	)
}
