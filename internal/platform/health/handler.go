// Package health exposes the server's probe endpoints. Liveness answers as
// long as the process serves; readiness fans out to the dependency checks
// registered at startup and fails when any of them do.
package health

import (
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"trustcore/pkg/platform/httputil"
)

// Version is stamped at build time via ldflags.
var Version = "dev"

// Check reports whether one dependency can serve. nil means healthy.
type Check func() error

// Handler answers the probe endpoints.
type Handler struct {
	startedAt   time.Time
	environment string

	mu     sync.RWMutex
	checks map[string]Check
}

func New(environment string) *Handler {
	return &Handler{
		startedAt:   time.Now(),
		environment: environment,
		checks:      make(map[string]Check),
	}
}

// RegisterCheck adds a named dependency to the readiness probe.
func (h *Handler) RegisterCheck(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Register mounts the probe routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

// HandleLiveness proves only that the process is serving requests.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessResponse reports each dependency alongside the overall verdict.
type ReadinessResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HandleReadiness runs every registered check and returns 503 when any
// dependency is down, so the load balancer stops routing here.
func (h *Handler) HandleReadiness(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := make(map[string]Check, len(h.checks))
	maps.Copy(checks, h.checks)
	h.mu.RUnlock()

	resp := ReadinessResponse{
		Status:       "ready",
		Dependencies: make(map[string]string, len(checks)),
	}
	status := http.StatusOK
	for name, check := range checks {
		if err := check(); err != nil {
			resp.Dependencies[name] = "down: " + err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "up"
	}
	httputil.WriteJSON(w, status, resp)
}

// StatusResponse identifies the running build.
type StatusResponse struct {
	Service       string `json:"service"`
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// HandleStatus returns the build identity and uptime.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Service:       "trustcore",
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
