package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	authpkg "github.com/13507-IN/HorizonPay/shared/pkg/auth"
	"github.com/13507-IN/HorizonPay/shared/pkg/ratelimiter"
)

// ThrottleMiddleware rate limits requests per authenticated wallet.
// It must run after the auth middleware; requests without a user pass through.
// A nil limiter disables throttling.
func ThrottleMiddleware(limiter *ratelimiter.MapLimiter, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, err := authpkg.GetUserFromContext(r.Context())
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if wait, ok := limiter.Reserve(userCtx.WalletAddress, now()); !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", formatRetryAfter(wait))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":     "rate limit exceeded",
					"kind":      "rate_limited",
					"retryable": true,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// formatRetryAfter rounds the wait up to whole seconds for the Retry-After header
func formatRetryAfter(wait time.Duration) string {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
