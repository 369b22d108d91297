// Package service implements the token lifecycle: credential issue, refresh
// rotation with reuse detection, validation, and revocation.
package service

import (
	"log/slog"
	"time"

	"trustcore/internal/platform/metrics"
)

const defaultRefreshTTL = 30 * 24 * time.Hour

type Service struct {
	users      UserStore
	sessions   SessionStore
	refresh    RefreshTokenStore
	blacklist  BlacklistStore
	tokens     TokenService
	lockout    LockoutGuard
	auditor    AuditRecorder
	refreshTTL time.Duration
	bcryptCost int
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

func WithLockoutGuard(guard LockoutGuard) Option {
	return func(s *Service) {
		s.lockout = guard
	}
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		s.auditor = recorder
	}
}

// WithRefreshTTL configures the refresh token lifetime.
// If not set or set to zero/negative, defaults to 30 days.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithBcryptCost overrides the bcrypt work factor, mainly for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

func NewService(
	users UserStore,
	sessions SessionStore,
	refresh RefreshTokenStore,
	blacklist BlacklistStore,
	tokens TokenService,
	opts ...Option,
) *Service {
	svc := &Service{
		users:      users,
		sessions:   sessions,
		refresh:    refresh,
		blacklist:  blacklist,
		tokens:     tokens,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}
