// Command server wires the trust core: token lifecycle, tenant ownership
// guard, rate limiting with lockout, the hash-chained audit log, versioned
// shipments, and the resilient outbound connectors. Stores are selected from
// configuration; without postgres or redis everything runs in memory, which
// is how local development and the test suite run.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"trustcore/internal/audit"
	auditHandler "trustcore/internal/audit/handler"
	authHandler "trustcore/internal/auth/handler"
	authService "trustcore/internal/auth/service"
	"trustcore/internal/auth/store/blacklist"
	"trustcore/internal/auth/store/refreshtoken"
	"trustcore/internal/auth/store/session"
	"trustcore/internal/auth/store/user"
	"trustcore/internal/auth/workers/cleanup"
	"trustcore/internal/connector/aggregator"
	"trustcore/internal/connector/ai"
	aiHandler "trustcore/internal/connector/ai/handler"
	"trustcore/internal/jwttoken"
	"trustcore/internal/platform/config"
	"trustcore/internal/platform/database"
	"trustcore/internal/platform/health"
	"trustcore/internal/platform/logger"
	"trustcore/internal/platform/metrics"
	platformRedis "trustcore/internal/platform/redis"
	"trustcore/internal/ratelimit"
	"trustcore/internal/ratelimit/lockout"
	"trustcore/internal/resilience"
	shipmentHandler "trustcore/internal/shipment/handler"
	shipmentService "trustcore/internal/shipment/service"
	shipmentStore "trustcore/internal/shipment/store"
	"trustcore/internal/tenant"
	httptransport "trustcore/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing trustcore",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	cache, err := platformRedis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// Stores. Postgres when configured, redis for the hot counters when
	// available, memory otherwise.
	var (
		users        authService.UserStore
		sessions     authService.SessionStore
		refreshStore authService.RefreshTokenStore
		tokenBlock   authService.BlacklistStore
		buckets      ratelimit.BucketStore
		failures     lockout.Counter
		auditStore   audit.Store
		shipments    shipmentService.ShipmentStore
		ownerSource  tenant.OwnershipSource
		events       aggregator.EventSink

		cleanupSessions  cleanup.SessionStore
		cleanupRefresh   cleanup.RefreshTokenStore
		cleanupBlacklist cleanup.BlacklistStore
	)
	if db != nil {
		pg := db.DB()
		users = user.NewPostgres(pg)
		pgSessions := session.NewPostgres(pg)
		sessions, cleanupSessions = pgSessions, pgSessions
		pgRefresh := refreshtoken.NewPostgres(pg)
		refreshStore, cleanupRefresh = pgRefresh, pgRefresh
		pgBlacklist := blacklist.NewPostgres(pg)
		tokenBlock, cleanupBlacklist = pgBlacklist, pgBlacklist
		buckets = ratelimit.NewPostgresBucketStore(pg)
		failures = lockout.NewPostgresCounter(pg)
		auditStore = audit.NewPostgresStore(pg)
		pgShipments := shipmentStore.NewPostgres(pg)
		shipments, ownerSource = pgShipments, pgShipments
		events = aggregator.NewPostgresEventSink(pg)
	} else {
		log.Warn("no DATABASE_URL configured, using in-memory stores")
		users = user.NewInMemoryUserStore()
		memSessions := session.NewInMemorySessionStore()
		sessions, cleanupSessions = memSessions, memSessions
		memRefresh := refreshtoken.NewInMemoryRefreshTokenStore()
		refreshStore, cleanupRefresh = memRefresh, memRefresh
		memBlacklist := blacklist.NewInMemoryBlacklist()
		tokenBlock, cleanupBlacklist = memBlacklist, memBlacklist
		buckets = ratelimit.NewInMemoryBucketStore()
		failures = lockout.NewInMemoryCounter()
		auditStore = audit.NewInMemoryStore()
		memShipments := shipmentStore.NewInMemoryShipmentStore()
		shipments, ownerSource = memShipments, memShipments
		events = aggregator.NewInMemoryEventSink()
	}
	if cache != nil {
		redisBlacklist := blacklist.NewRedisBlacklist(cache.Client)
		tokenBlock, cleanupBlacklist = redisBlacklist, redisBlacklist
		buckets = ratelimit.NewRedisBucketStore(cache.Client)
	}

	auditor := audit.NewRecorder(auditStore,
		audit.WithLogger(log),
		audit.WithMetrics(m),
	)

	lockouts := lockout.NewService(failures,
		lockout.WithThresholds(cfg.Lockout.IdentityThreshold, cfg.Lockout.IPThreshold),
		lockout.WithWindow(cfg.Lockout.Window),
		lockout.WithLockDuration(cfg.Lockout.LockDuration),
		lockout.WithLogger(log),
	)

	tokens := jwttoken.NewService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTTL)

	auth := authService.NewService(users, sessions, refreshStore, tokenBlock, tokens,
		authService.WithLogger(log),
		authService.WithMetrics(m),
		authService.WithLockoutGuard(lockouts),
		authService.WithAuditRecorder(auditor),
		authService.WithRefreshTTL(cfg.JWT.RefreshTTL),
	)

	limiter := ratelimit.NewService(buckets,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(m),
	)

	guard := tenant.NewGuard(tenant.WithLogger(log))
	guard.Register("shipment", ownerSource)

	shipmentSvc := shipmentService.NewService(shipments, guard,
		shipmentService.WithLogger(log),
		shipmentService.WithMetrics(m),
		shipmentService.WithAuditRecorder(auditor),
	)

	drafting := ai.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey,
		ai.WithLogger(log),
		ai.WithResilience(resilience.NewClient("ai_service",
			resilience.WithBreaker(resilience.NewBreaker("ai_service",
				resilience.WithFailureThreshold(cfg.Breaker.FailureThreshold),
				resilience.WithCooldown(cfg.Breaker.Cooldown),
			)),
			resilience.WithCallTimeout(cfg.Breaker.CallTimeout),
			resilience.WithClientLogger(log),
			resilience.WithClientMetrics(m),
		)),
	)

	webhook := aggregator.NewHandler(cfg.Webhook.SigningSecret, events,
		aggregator.WithThrottle(cfg.Webhook.GlobalRPS, cfg.Webhook.GlobalBurst),
		aggregator.WithAuditRecorder(auditor),
		aggregator.WithLogger(log),
	)

	sweepOpts := []cleanup.Option{
		cleanup.WithInterval(cfg.CleanupInterval),
		cleanup.WithLogger(log),
	}
	// Redis-backed stores expire keys on their own and register no sweeper.
	if sw, ok := buckets.(cleanup.Sweeper); ok {
		sweepOpts = append(sweepOpts, cleanup.WithSweeper("rate_limit_buckets", sw))
	}
	if sw, ok := failures.(cleanup.Sweeper); ok {
		sweepOpts = append(sweepOpts, cleanup.WithSweeper("auth_lockouts", sw))
	}
	sweeper, err := cleanup.New(cleanupSessions, cleanupRefresh, cleanupBlacklist, sweepOpts...)
	if err != nil {
		log.Error("cleanup worker init failed", "error", err)
		os.Exit(1)
	}

	healthz := health.New(cfg.Environment)
	if db != nil {
		healthz.RegisterCheck("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return db.Health(ctx)
		})
	}
	if cache != nil {
		healthz.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
			defer cancel()
			return cache.Health(ctx)
		})
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Auth:          authHandler.New(auth, log),
		Shipments:     shipmentHandler.New(shipmentSvc, log),
		Audit:         auditHandler.New(auditor, log),
		Drafting:      aiHandler.New(drafting, log),
		Webhook:       webhook,
		Health:        healthz,
		Authenticator: auth,
		Limiter:       limiter,
		Metrics:       m,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := sweeper.Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	if db != nil {
		_ = db.Close()
	}
	if cache != nil {
		_ = cache.Close()
	}
	log.Info("server stopped")
}
