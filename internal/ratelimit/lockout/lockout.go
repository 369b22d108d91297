// Package lockout throttles brute-force login attempts. Failures are counted
// per identity and per source IP inside a rolling window; crossing either
// threshold locks that key for the lock duration.
package lockout

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/requestcontext"
)

const (
	DefaultIdentityThreshold = 5
	DefaultIPThreshold       = 10
	DefaultWindow            = 15 * time.Minute
	DefaultLockDuration      = 15 * time.Minute

	// staleAfter is how long an idle, unlocked tally survives before Purge
	// drops it. Comfortably past both the window and the lock duration.
	staleAfter = time.Hour
)

// Counter persists failure tallies and lock marks per key.
type Counter interface {
	// RecordFailure increments the key's tally and returns the count of
	// failures inside the window.
	RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
	// Lock marks the key locked until the given time.
	Lock(ctx context.Context, key string, until time.Time) error
	// LockedUntil reports the key's lock expiry; zero time means unlocked.
	LockedUntil(ctx context.Context, key string) (time.Time, error)
	// Reset clears the key's tally and lock.
	Reset(ctx context.Context, key string) error
}

type Service struct {
	counter           Counter
	identityThreshold int
	ipThreshold       int
	window            time.Duration
	lockDuration      time.Duration
	logger            *slog.Logger
}

type Option func(*Service)

func WithThresholds(identity, ip int) Option {
	return func(s *Service) {
		if identity > 0 {
			s.identityThreshold = identity
		}
		if ip > 0 {
			s.ipThreshold = ip
		}
	}
}

func WithWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

func WithLockDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lockDuration = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(counter Counter, opts ...Option) *Service {
	svc := &Service{
		counter:           counter,
		identityThreshold: DefaultIdentityThreshold,
		ipThreshold:       DefaultIPThreshold,
		window:            DefaultWindow,
		lockDuration:      DefaultLockDuration,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

func identityKey(email string) string { return "id:" + email }
func ipKey(ip string) string          { return "ip:" + ip }

// Check rejects the attempt when either the identity or the source IP is
// currently locked. The error carries the remaining lock time so the handler
// can surface a Retry-After.
func (s *Service) Check(ctx context.Context, email, ip string) error {
	now := requestcontext.Now(ctx)
	for _, key := range []string{identityKey(email), ipKey(ip)} {
		until, err := s.counter.LockedUntil(ctx, key)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "lockout check failed")
		}
		if until.After(now) {
			return dErrors.WithDetails(dErrors.CodeAccountLocked,
				"too many failed attempts, try again later",
				map[string]string{"retry_after_seconds": strconv.Itoa(ceilSeconds(until.Sub(now)))})
		}
	}
	return nil
}

// Outcome reports where the caller stands after a recorded failure.
// AttemptsRemaining is how many more failures either key can absorb before a
// lock trips; RetryAfter is the lock duration when this attempt tripped one.
type Outcome struct {
	Tripped           bool
	AttemptsRemaining int
	RetryAfter        time.Duration
}

// RecordFailure books one failed attempt against both counters and reports
// whether this attempt tripped a lock.
func (s *Service) RecordFailure(ctx context.Context, email, ip string) (Outcome, error) {
	now := requestcontext.Now(ctx)
	var out Outcome

	idCount, err := s.counter.RecordFailure(ctx, identityKey(email), now, s.window)
	if err != nil {
		return out, err
	}
	if idCount >= s.identityThreshold {
		if err := s.counter.Lock(ctx, identityKey(email), now.Add(s.lockDuration)); err != nil {
			return out, err
		}
		s.logger.Warn("identity locked after repeated failures", "failures", idCount)
		out.Tripped = true
	}

	ipCount, err := s.counter.RecordFailure(ctx, ipKey(ip), now, s.window)
	if err != nil {
		return out, err
	}
	if ipCount >= s.ipThreshold {
		if err := s.counter.Lock(ctx, ipKey(ip), now.Add(s.lockDuration)); err != nil {
			return out, err
		}
		s.logger.Warn("source address locked after repeated failures", "ip", ip, "failures", ipCount)
		out.Tripped = true
	}

	if out.Tripped {
		out.RetryAfter = s.lockDuration
	} else {
		out.AttemptsRemaining = min(s.identityThreshold-idCount, s.ipThreshold-ipCount)
		if out.AttemptsRemaining < 0 {
			out.AttemptsRemaining = 0
		}
	}
	return out, nil
}

// ceilSeconds rounds a duration up to whole seconds for Retry-After values.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Reset clears both counters after a successful login.
func (s *Service) Reset(ctx context.Context, email, ip string) error {
	if err := s.counter.Reset(ctx, identityKey(email)); err != nil {
		return err
	}
	return s.counter.Reset(ctx, ipKey(ip))
}
