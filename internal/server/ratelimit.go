package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tjfontaine/tutor-gateway/internal/policy"
)

// rateLimitContextKey is the context key for the rate limit holder
type rateLimitContextKey struct{}

// RateLimitInfo contains normalized rate limit information.
// Handlers record it with SetRateLimits and the middleware writes it as
// response headers.
type RateLimitInfo struct {
	RequestsLimit     int
	RequestsRemaining int
	RequestsReset     string
	// RetryAfter is sent as Retry-After, in whole seconds rounded up.
	RetryAfter time.Duration
}

// RateLimitInfoFromDecision converts a limiter decision.
func RateLimitInfoFromDecision(d policy.Decision) *RateLimitInfo {
	info := &RateLimitInfo{
		RequestsLimit:     d.Limit,
		RequestsRemaining: d.Remaining,
		RetryAfter:        d.RetryAfter,
	}
	if !d.ResetAt.IsZero() {
		info.RequestsReset = d.ResetAt.UTC().Format(time.RFC3339)
	}
	return info
}

// rateLimitHolder is installed by the middleware before the handler runs,
// so handlers deeper in the chain can publish info without replacing the
// request.
type rateLimitHolder struct {
	mu   sync.Mutex
	info *RateLimitInfo
}

// SetRateLimits records rate limit info for the current request. No-op if
// the middleware isn't present.
func SetRateLimits(ctx context.Context, rl *RateLimitInfo) {
	if h, ok := ctx.Value(rateLimitContextKey{}).(*rateLimitHolder); ok {
		h.mu.Lock()
		h.info = rl
		h.mu.Unlock()
	}
}

// getRateLimits retrieves rate limit info from context.
// Returns nil if no rate limits are set.
func getRateLimits(ctx context.Context) *RateLimitInfo {
	if h, ok := ctx.Value(rateLimitContextKey{}).(*rateLimitHolder); ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.info
	}
	return nil
}

// RateLimitNormalizingMiddleware writes normalized rate limit headers to responses.
// It reads rate limit info recorded by handlers via SetRateLimits
// and writes standardized x-ratelimit-* headers.
func RateLimitNormalizingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), rateLimitContextKey{}, &rateLimitHolder{})
		wrapped := &rateLimitResponseWriter{
			ResponseWriter: w,
			ctx:            ctx,
		}
		next.ServeHTTP(wrapped, r.WithContext(ctx))
	})
}

// rateLimitResponseWriter wraps ResponseWriter to write rate limit headers.
type rateLimitResponseWriter struct {
	http.ResponseWriter
	ctx          context.Context
	wroteHeaders bool
}

func (rw *rateLimitResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeaders {
		rw.writeRateLimitHeaders()
		rw.wroteHeaders = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *rateLimitResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeaders {
		rw.writeRateLimitHeaders()
		rw.wroteHeaders = true
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *rateLimitResponseWriter) writeRateLimitHeaders() {
	rl := getRateLimits(rw.ctx)
	if rl == nil {
		return
	}

	h := rw.Header()

	// Standard format: x-ratelimit-{limit|remaining|reset}-requests
	if rl.RequestsLimit > 0 {
		h.Set("x-ratelimit-limit-requests", strconv.Itoa(rl.RequestsLimit))
		// 0 is a valid remaining value once a limit is known
		h.Set("x-ratelimit-remaining-requests", strconv.Itoa(rl.RequestsRemaining))
	}
	if rl.RequestsReset != "" {
		h.Set("x-ratelimit-reset-requests", rl.RequestsReset)
	}
	if rl.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(RetryAfterSeconds(rl.RetryAfter)))
	}
}

// RetryAfterSeconds rounds d up to whole seconds, with a minimum of one.
func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func (rw *rateLimitResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
