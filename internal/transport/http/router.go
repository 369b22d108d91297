// Package httptransport assembles the HTTP surface: middleware stack,
// per-endpoint rate limit classes, and route registration for every handler.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auditHandler "trustcore/internal/audit/handler"
	authHandler "trustcore/internal/auth/handler"
	"trustcore/internal/connector/aggregator"
	aiHandler "trustcore/internal/connector/ai/handler"
	"trustcore/internal/platform/health"
	"trustcore/internal/platform/metrics"
	"trustcore/internal/platform/middleware"
	"trustcore/internal/ratelimit"
	shipmentHandler "trustcore/internal/shipment/handler"
	"trustcore/pkg/requestcontext"
)

// Deps carries everything the router needs. Nil optional fields disable the
// corresponding routes so tests can wire only what they exercise.
type Deps struct {
	Auth          *authHandler.Handler
	Shipments     *shipmentHandler.Handler
	Audit         *auditHandler.Handler
	Drafting      *aiHandler.Handler
	Webhook       *aggregator.Handler
	Health        *health.Handler
	Authenticator middleware.Authenticator
	Limiter       *ratelimit.Service
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// NewRouter wires all endpoints with the shared middleware stack.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(requestcontext.Middleware)

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	if d.Auth != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Latency(d.Metrics, "auth"))
			r.With(limit(d.Limiter, ratelimit.ClassRegistration, nil)).
				Post("/auth/register", d.Auth.HandleRegister)
			r.With(limit(d.Limiter, ratelimit.ClassLogin, nil)).
				Post("/auth/login", d.Auth.HandleLogin)
			r.With(limit(d.Limiter, ratelimit.ClassRefresh, nil)).
				Post("/auth/refresh", d.Auth.HandleRefresh)
			r.Post("/auth/logout", d.Auth.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Latency(d.Metrics, "auth"))
			r.Use(middleware.RequireAuth(d.Authenticator))
			r.Post("/auth/logout-all", d.Auth.HandleLogoutAll)
			r.Post("/auth/sessions/revoke-others", d.Auth.HandleRevokeOtherSessions)
			r.With(limit(d.Limiter, ratelimit.ClassPasswordChange, byUser())).
				Put("/auth/password", d.Auth.HandleChangePassword)
			r.Get("/auth/sessions", d.Auth.HandleListSessions)
			r.Delete("/auth/sessions/{session_id}", d.Auth.HandleRevokeSession)
		})
	}

	if d.Shipments != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Latency(d.Metrics, "shipments"))
			r.Use(middleware.RequireAuth(d.Authenticator))
			r.Use(limit(d.Limiter, ratelimit.ClassDefault, byTenant()))
			d.Shipments.Register(r)
		})
	}

	if d.Audit != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Latency(d.Metrics, "audit"))
			r.Use(middleware.RequireAuth(d.Authenticator))
			r.Use(limit(d.Limiter, ratelimit.ClassDefault, byTenant()))
			d.Audit.Register(r)
		})
	}

	if d.Drafting != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Latency(d.Metrics, "ai"))
			r.Use(middleware.RequireAuth(d.Authenticator))
			r.Use(limit(d.Limiter, ratelimit.ClassAIGeneration, byTenant()))
			d.Drafting.Register(r)
		})
	}

	if d.Webhook != nil {
		r.Method(http.MethodPost, "/webhooks/aggregator", d.Webhook)
	}

	return r
}

// limit is a no-op when no limiter is configured, which keeps handler tests
// free of rate limit plumbing.
func limit(svc *ratelimit.Service, className string, resolve ratelimit.SubjectResolver) func(http.Handler) http.Handler {
	if svc == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimit.Middleware(svc, className, resolve)
}

// byUser keys the counter on the authenticated user, falling back to the
// client IP when the request carries no principal.
func byUser() ratelimit.SubjectResolver {
	return func(r *http.Request) string {
		if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
			return "user:" + p.ID.String()
		}
		return ""
	}
}

// byTenant keys the counter on the caller's tenant so one tenant cannot
// starve another.
func byTenant() ratelimit.SubjectResolver {
	return func(r *http.Request) string {
		if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
			return "tenant:" + p.TenantID.String()
		}
		return ""
	}
}
