// internal/ratelimit/headers.go
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
)

// RateLimitInfo contains rate limit information
type RateLimitInfo struct {
	Limit      int   `json:"limit"`
	Remaining  int   `json:"remaining"`
	Reset      int64 `json:"reset"`
	RetryAfter int   `json:"retry_after,omitempty"`
}

// SetHeaders adds rate limit headers to a response
func SetHeaders(w http.ResponseWriter, info RateLimitInfo) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.Reset, 10))
}

// FormatRateLimitError formats a rate limit error response
func FormatRateLimitError(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	errorMsg := fmt.Sprintf(`{"error":"Rate limit exceeded","retry_after":%d}`, retryAfter)
	_, _ = w.Write([]byte(errorMsg))
}

// RemoteKey keys a request by the client IP.
func RemoteKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RejectFunc writes the response for a rejected request. Retry-After and the
// X-RateLimit headers are already set when it is called.
type RejectFunc func(w http.ResponseWriter, r *http.Request, info RateLimitInfo)

// Middleware limits requests per key. cost picks the token cost of a request.
// A nil reject answers with FormatRateLimitError.
func (cl *ClientLimiter) Middleware(key func(*http.Request) string, cost func(*http.Request) int, reject RejectFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = RemoteKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cl.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			n := CostRead
			if cost != nil {
				n = cost(r)
			}

			info, allowed := cl.Allow(key(r), n)
			SetHeaders(w, info)
			if !allowed {
				if reject == nil {
					FormatRateLimitError(w, info.RetryAfter)
					return
				}
				w.Header().Set("Retry-After", strconv.Itoa(info.RetryAfter))
				reject(w, r, info)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
