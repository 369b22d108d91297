// Package aggregator receives tracking webhooks from the logistics data
// provider. The provider signs each delivery with a shared secret; anything
// unsigned or over budget is dropped before it touches storage.
package aggregator

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"trustcore/internal/audit"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/platform/httputil"
)

// SignatureHeader carries the provider's hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Aggregator-Signature"

const maxBodyBytes = 256 << 10

// Event is one tracking update from the provider.
type Event struct {
	EventID     string    `json:"event_id"`
	ShipmentRef string    `json:"shipment_ref"`
	EventType   string    `json:"event_type"`
	Vessel      string    `json:"vessel,omitempty"`
	Location    string    `json:"location,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventSink stores accepted events. Duplicate event IDs are ignored, since
// the provider redelivers on timeout.
type EventSink interface {
	Store(ctx context.Context, event Event) (stored bool, err error)
}

// AuditRecorder appends webhook outcomes to the tamper-evident log.
type AuditRecorder interface {
	Append(ctx context.Context, rec audit.Record) (*audit.Entry, error)
}

type Handler struct {
	secret  []byte
	limiter *rate.Limiter
	sink    EventSink
	auditor AuditRecorder
	logger  *slog.Logger
}

type Option func(*Handler)

// WithThrottle caps accepted deliveries per second with the given burst.
// Default is 50/s with a burst of 100.
func WithThrottle(perSecond float64, burst int) Option {
	return func(h *Handler) {
		if perSecond > 0 && burst > 0 {
			h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(h *Handler) {
		h.auditor = recorder
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func NewHandler(secret string, sink EventSink, opts ...Option) *Handler {
	h := &Handler{
		secret:  []byte(secret),
		limiter: rate.NewLimiter(rate.Limit(50), 100),
		sink:    sink,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// ServeHTTP handles POST deliveries. The signature is checked before the
// body is parsed; a forged delivery never reaches the JSON decoder.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.limiter.Allow() {
		h.logger.Warn("webhook throttled", "remote", r.RemoteAddr)
		httputil.WriteRetryAfter(w, 1)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil || int64(len(body)) > maxBodyBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unreadable webhook body"))
		return
	}

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		h.reject(ctx, w, r, "bad_signature")
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		h.reject(ctx, w, r, "malformed_payload")
		return
	}
	if event.EventID == "" || event.ShipmentRef == "" {
		h.reject(ctx, w, r, "missing_fields")
		return
	}

	stored, err := h.sink.Store(ctx, event)
	if err != nil {
		h.logger.Error("webhook event store failed", "error", err, "event_id", event.EventID)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "event not stored"))
		return
	}

	if h.auditor != nil {
		_, err := h.auditor.Append(ctx, audit.Record{
			ActorID:      "aggregator",
			Action:       string(audit.ActionWebhookReceived),
			ResourceType: "tracking_event",
			ResourceID:   event.EventID,
			Success:      true,
			Metadata: map[string]string{
				"shipment_ref": event.ShipmentRef,
				"event_type":   event.EventType,
			},
		})
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	// duplicates are acknowledged too, so the provider stops resending
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"accepted": true, "duplicate": !stored})
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

func (h *Handler) reject(ctx context.Context, w http.ResponseWriter, r *http.Request, reason string) {
	h.logger.Warn("webhook rejected", "reason", reason, "remote", r.RemoteAddr)
	if h.auditor != nil {
		_, _ = h.auditor.Append(ctx, audit.Record{
			ActorID:      "aggregator",
			Action:       string(audit.ActionWebhookRejected),
			ResourceType: "tracking_event",
			Success:      false,
			Metadata:     map[string]string{"reason": reason},
		})
	}
	if reason == "bad_signature" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid webhook signature"))
		return
	}
	httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid webhook payload"))
}
