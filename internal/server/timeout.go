package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// TimeoutMiddleware puts a deadline on the request context. Cancellation is
// cooperative: upstream calls and compiler runs observe the context and
// return. If the handler gives up without writing anything, the client gets
// a 503 instead of an empty 200. A non-positive timeout disables the
// deadline.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{ResponseWriter: w}
			next.ServeHTTP(tw, r.WithContext(ctx))

			if !tw.wroteHeader && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				writeJSONError(w, http.StatusServiceUnavailable, "request timed out")
			}
		})
	}
}

type timeoutWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.wroteHeader = true
	return tw.ResponseWriter.Write(b)
}

func (tw *timeoutWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}
