package resilience

import (
	"math"
	"math/rand"
	"time"

	dErrors "trustcore/pkg/domain-errors"
)

// RetryPolicy shapes the backoff between attempts: delay for attempt n is
// base * multiplier^(n-1), capped, with jitter so synchronized clients spread
// out after a shared outage.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64
}

// DefaultRetryPolicy returns the production policy: three attempts starting
// at one second, doubling, capped at ten seconds, with 20% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Delay returns the backoff before the given retry. attempt is 1-based and
// names the attempt that just failed.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.Jitter > 0 {
		// spread within [d*(1-jitter), d*(1+jitter)]
		d *= 1 + p.Jitter*(2*rand.Float64()-1)
	}
	// the cap bounds the jittered delay, not just the exponential curve
	if max := float64(p.MaxDelay); d > max {
		d = max
	}
	return time.Duration(d)
}

// IsTransient reports whether an error is worth retrying. Timeouts and
// unavailability are; everything else, notably 4xx-shaped domain errors,
// would fail identically on every attempt.
func IsTransient(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeTimeout, dErrors.CodeUnavailable:
		return true
	default:
		return false
	}
}
