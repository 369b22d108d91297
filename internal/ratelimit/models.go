// Package ratelimit enforces fixed-window request quotas per endpoint class.
// A window is floor(now/window) wide; all callers hitting the same key share
// one counter for the duration of the window.
package ratelimit

import "time"

// Scope names what a class's counter is keyed on.
type Scope string

const (
	ScopeIP     Scope = "ip"
	ScopeUser   Scope = "user"
	ScopeTenant Scope = "tenant"
)

// Class configures one endpoint class.
type Class struct {
	Name   string
	Limit  int64
	Window time.Duration
	Scope  Scope
}

// Decision is the outcome of a limit check. Remaining and ResetAt feed the
// X-RateLimit response headers regardless of outcome.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}
