// Package provider holds the helpers shared by the upstream adapters in its
// subpackages. Each adapter implements domain.Provider.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxDetailBytes caps upstream bodies copied into error details.
const maxDetailBytes = 512

// NewHTTPClient returns a client whose transport is traced with otelhttp.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// TransportError classifies a failure that happened before any response
// arrived.
func TransportError(ctx context.Context, name string, err error) *domain.APIError {
	if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) || isTimeout(err) {
		return domain.ErrUpstream(name + " provider timed out").
			WithDetails("upstream timeout").
			WithCause(err)
	}
	return domain.ErrUpstream(name + " provider unreachable").
		WithDetails(err.Error()).
		WithCause(err)
}

// StatusError classifies a non-2xx upstream response.
func StatusError(name string, status int, body []byte) *domain.APIError {
	e := domain.ErrUpstream(fmt.Sprintf("%s provider returned status %d", name, status))
	if len(body) > 0 {
		e = e.WithDetails(Truncate(string(body), maxDetailBytes))
	}
	return e
}

// MalformedError classifies a response body that could not be parsed.
func MalformedError(name string, err error) *domain.APIError {
	return domain.ErrUpstream("malformed upstream response from " + name + " provider").WithCause(err)
}

// Truncate shortens s to at most n bytes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
