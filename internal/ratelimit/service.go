package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trustcore/internal/platform/metrics"
	"trustcore/pkg/requestcontext"
)

type Service struct {
	store   BucketStore
	classes map[string]Class
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClasses replaces the default quota table.
func WithClasses(classes map[string]Class) Option {
	return func(s *Service) {
		if len(classes) > 0 {
			s.classes = classes
		}
	}
}

func NewService(store BucketStore, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		classes: DefaultClasses(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Check counts this request against the class's current window and decides.
// An unknown class denies: an endpoint nobody budgeted must not default to
// unlimited.
func (s *Service) Check(ctx context.Context, className, subject string) (Decision, error) {
	now := requestcontext.Now(ctx)

	class, ok := s.classes[className]
	if !ok {
		s.logger.Error("rate limit check for unconfigured class", "class", className)
		s.denied(className)
		return Decision{
			Allowed:    false,
			ResetAt:    now.Add(time.Minute),
			RetryAfter: time.Minute,
		}, nil
	}

	windowStart := now.Truncate(class.Window)
	resetAt := windowStart.Add(class.Window)
	key := fmt.Sprintf("rl:%s:%s:%d", class.Name, subject, windowStart.Unix())

	// TTL runs a little past the window edge so a straggling write cannot
	// resurrect a bucket that already reset
	count, err := s.store.Incr(ctx, key, class.Window+time.Second)
	if err != nil {
		// the counter backend is down; denying here would turn a cache
		// outage into a full API outage
		s.logger.Error("rate bucket increment failed, allowing request", "error", err, "class", class.Name)
		return Decision{Allowed: true, Limit: class.Limit, Remaining: 0, ResetAt: resetAt}, nil
	}

	remaining := class.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	if count > class.Limit {
		s.denied(class.Name)
		return Decision{
			Allowed:    false,
			Limit:      class.Limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     class.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// ClassFor returns the configured class by name.
func (s *Service) ClassFor(name string) (Class, bool) {
	c, ok := s.classes[name]
	return c, ok
}

func (s *Service) denied(class string) {
	if s.metrics != nil {
		s.metrics.RateLimitDenials.WithLabelValues(class).Inc()
	}
}
