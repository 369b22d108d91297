package aggregator

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/audit"
)

const testSecret = "webhook-shared-secret"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func deliver(h *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/aggregator", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const validPayload = `{"event_id":"evt-1","shipment_ref":"EXP-2026-0042","event_type":"vessel_departed","vessel":"MV Nordlys","location":"SGSIN","occurred_at":"2026-03-01T08:00:00Z"}`

func TestWebhookAcceptsSignedEvent(t *testing.T) {
	sink := NewInMemoryEventSink()
	auditStore := audit.NewInMemoryStore()
	h := NewHandler(testSecret, sink, WithAuditRecorder(audit.NewRecorder(auditStore)))

	body := []byte(validPayload)
	rec := deliver(h, body, sign(body))

	require.Equal(t, http.StatusOK, rec.Code)
	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "EXP-2026-0042", events[0].ShipmentRef)
	assert.Equal(t, "vessel_departed", events[0].EventType)

	entries, err := auditStore.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(audit.ActionWebhookReceived), entries[0].Action)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	sink := NewInMemoryEventSink()
	h := NewHandler(testSecret, sink)

	body := []byte(validPayload)

	rec := deliver(h, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = deliver(h, body, hex.EncodeToString(bytes.Repeat([]byte{0xAB}, 32)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a tampered body no longer matches its signature
	tampered := bytes.Replace(body, []byte("EXP-2026-0042"), []byte("EXP-2026-9999"), 1)
	rec = deliver(h, tampered, sign(body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Empty(t, sink.Events())
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	h := NewHandler(testSecret, NewInMemoryEventSink())

	body := []byte(`{"event_id":`)
	rec := deliver(h, body, sign(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = []byte(`{"event_type":"vessel_departed"}`)
	rec = deliver(h, body, sign(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookDeduplicatesRedelivery(t *testing.T) {
	sink := NewInMemoryEventSink()
	h := NewHandler(testSecret, sink)

	body := []byte(validPayload)
	first := deliver(h, body, sign(body))
	second := deliver(h, body, sign(body))

	assert.Equal(t, http.StatusOK, first.Code)
	// redelivery is acknowledged but not stored twice
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"duplicate":true`)
	assert.Len(t, sink.Events(), 1)
}

func TestWebhookThrottles(t *testing.T) {
	sink := NewInMemoryEventSink()
	h := NewHandler(testSecret, sink, WithThrottle(1, 2))

	body := []byte(validPayload)
	sig := sign(body)

	deliver(h, body, sig)
	deliver(h, body, sig)
	rec := deliver(h, body, sig)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
