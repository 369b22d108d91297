// Package cleanup periodically removes expired auth artifacts so the hot-path
// stores stay small: spent refresh tokens, dead sessions, and blacklist
// entries whose tokens have expired anyway.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RefreshTokenStore exposes cleanup for refresh token records.
type RefreshTokenStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionStore exposes cleanup for expired sessions.
type SessionStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// BlacklistStore exposes cleanup for expired blacklist entries.
type BlacklistStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper purges rows whose usefulness ended before now. Rate limit bucket
// stores and lockout counters register here so keys from elapsed windows do
// not accumulate.
type Sweeper interface {
	Purge(ctx context.Context, now time.Time) (int, error)
}

type namedSweeper struct {
	name    string
	sweeper Sweeper
}

// Result summarizes the deletions performed by a cleanup run.
type Result struct {
	DeletedRefreshTokens    int
	DeletedSessions         int
	DeletedBlacklistEntries int
	Purged                  map[string]int
}

// Service periodically removes expired auth artifacts.
type Service struct {
	sessions  SessionStore
	refresh   RefreshTokenStore
	blacklist BlacklistStore
	sweepers  []namedSweeper
	interval  time.Duration
	logger    *slog.Logger
}

// Option configures Service.
type Option func(*Service)

// WithInterval overrides the cleanup interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithSweeper registers an additional store to purge on every pass.
func WithSweeper(name string, sw Sweeper) Option {
	return func(s *Service) {
		if sw != nil {
			s.sweepers = append(s.sweepers, namedSweeper{name: name, sweeper: sw})
		}
	}
}

// WithLogger overrides the logger used for cleanup errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a cleanup Service with required stores and options applied.
func New(
	sessions SessionStore,
	refresh RefreshTokenStore,
	blacklist BlacklistStore,
	opts ...Option,
) (*Service, error) {
	if sessions == nil || refresh == nil || blacklist == nil {
		return nil, fmt.Errorf("sessions, refresh, and blacklist stores are required")
	}
	svc := &Service{
		sessions:  sessions,
		refresh:   refresh,
		blacklist: blacklist,
		interval:  5 * time.Minute,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "auth cleanup failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single cleanup pass. Errors are aggregated so one
// failing store does not stop the others from being swept.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	now := time.Now()
	var res Result
	var errs []error

	deletedRefresh, err := s.refresh.DeleteExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete expired refresh tokens: %w", err))
	} else {
		res.DeletedRefreshTokens = deletedRefresh
	}

	deletedSessions, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete expired sessions: %w", err))
	} else {
		res.DeletedSessions = deletedSessions
	}

	deletedBlacklist, err := s.blacklist.DeleteExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete expired blacklist entries: %w", err))
	} else {
		res.DeletedBlacklistEntries = deletedBlacklist
	}

	for _, ns := range s.sweepers {
		purged, err := ns.sweeper.Purge(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge %s: %w", ns.name, err))
			continue
		}
		if res.Purged == nil {
			res.Purged = make(map[string]int)
		}
		res.Purged[ns.name] = purged
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
