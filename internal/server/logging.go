package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type logFieldsKey struct{}

// requestFields collects handler-supplied attributes for the completion log.
type requestFields struct {
	mu     sync.Mutex
	values map[string]string
}

// LoggingMiddleware emits "request started" and "request completed" records.
// The completion record carries status, duration, response size and every
// field added through AddLogField. Its level follows the status: Error for
// 5xx, Warn for 4xx, Info otherwise. Health probes log at Debug.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			fields := &requestFields{values: make(map[string]string)}
			ctx := context.WithValue(r.Context(), logFieldsKey{}, fields)
			requestID := GetRequestID(ctx)

			base := slog.LevelInfo
			if r.URL.Path == "/health" {
				base = slog.LevelDebug
			}

			logger.LogAttrs(ctx, base, "request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(lw, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", lw.statusCode),
				slog.Int64("bytes", lw.bytes),
				slog.Duration("duration", time.Since(start)),
			}
			fields.mu.Lock()
			for k, v := range fields.values {
				attrs = append(attrs, slog.String(k, v))
			}
			fields.mu.Unlock()

			logger.LogAttrs(ctx, completionLevel(base, lw.statusCode), "request completed", attrs...)
		})
	}
}

func completionLevel(base slog.Level, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return base
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int64
	wroteHeader bool
}

func (rw *loggingResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *loggingResponseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// AddLogField attaches a key/value to the completion log of the current
// request. Empty values are dropped. No-op outside LoggingMiddleware.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if fields, ok := ctx.Value(logFieldsKey{}).(*requestFields); ok {
		fields.mu.Lock()
		fields.values[key] = value
		fields.mu.Unlock()
	}
}

// AddError records err under the "error" key of the completion log.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	AddLogField(ctx, "error", err.Error())
}
