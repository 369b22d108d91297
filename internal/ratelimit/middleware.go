package ratelimit

import (
	"net"
	"net/http"
	"strconv"

	"trustcore/pkg/platform/httputil"
)

// SubjectResolver extracts the counter subject for a request. Returning ""
// falls back to the client IP, so user-scoped endpoints still get limited
// before the caller is identified.
type SubjectResolver func(r *http.Request) string

// Middleware enforces the named class on every request passing through.
// The limit headers are set on allowed responses too, so well-behaved
// clients can pace themselves without ever hitting 429.
func Middleware(svc *Service, className string, resolve SubjectResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := ""
			if resolve != nil {
				subject = resolve(r)
			}
			if subject == "" {
				subject = ClientIP(r)
			}

			decision, err := svc.Check(r.Context(), className, subject)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				seconds := int(decision.RetryAfter.Seconds())
				if seconds < 1 {
					seconds = 1
				}
				httputil.WriteRetryAfter(w, seconds)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByIP keys the counter on the client address.
func ByIP() SubjectResolver {
	return func(r *http.Request) string {
		return ClientIP(r)
	}
}

// ClientIP returns the remote address without the port. Proxy headers are
// deliberately not consulted; the service terminates its own TLS and a
// spoofable header must not widen a per-IP budget.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
