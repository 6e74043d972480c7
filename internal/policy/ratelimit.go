// Package policy holds request admission policy for the gateway.
package policy

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the time left in the current window when denied.
	RetryAfter time.Duration
}

// Snapshot is a read-only view of the limiter state.
type Snapshot struct {
	WindowStart time.Time
	Count       int
	Window      time.Duration
	Max         int
}

// Limiter admits or rejects requests.
type Limiter interface {
	Admit() Decision
}

// FixedWindow is a process-wide fixed window counter. The zero value is
// not usable; construct with NewFixedWindow.
type FixedWindow struct {
	mu          sync.Mutex
	window      time.Duration
	max         int
	windowStart time.Time
	count       int
	now         func() time.Time
}

// Option configures a FixedWindow.
type Option func(*FixedWindow)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(f *FixedWindow) {
		f.now = now
	}
}

// NewFixedWindow creates a limiter allowing max requests per window.
// A max of zero or less disables limiting.
func NewFixedWindow(window time.Duration, max int, opts ...Option) *FixedWindow {
	f := &FixedWindow{
		window: window,
		max:    max,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.windowStart = f.now()
	return f
}

// Admit checks and, when allowed, counts one request. The window reset and
// the increment happen under the same lock. Denied requests are not counted.
func (f *FixedWindow) Admit() Decision {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if f.max <= 0 {
		return Decision{Allowed: true, ResetAt: now}
	}

	if f.window <= 0 || !now.Before(f.windowStart.Add(f.window)) {
		f.windowStart = now
		f.count = 0
	}

	resetAt := f.windowStart.Add(f.window)
	d := Decision{Limit: f.max, ResetAt: resetAt}

	if f.count >= f.max {
		d.RetryAfter = resetAt.Sub(now)
		return d
	}

	f.count++
	d.Allowed = true
	d.Remaining = f.max - f.count
	return d
}

// Snapshot returns the current counter state.
func (f *FixedWindow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		WindowStart: f.windowStart,
		Count:       f.count,
		Window:      f.window,
		Max:         f.max,
	}
}
