package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/resilience"
	dErrors "trustcore/pkg/domain-errors"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, "test-key",
		WithResilience(resilience.NewClient("ai_drafting", resilience.WithSleep(noSleep))))
}

func TestGenerateDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/documents/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"document":"COMMERCIAL INVOICE ...","model":"draft-v2"}`))
	})

	result, err := c.GenerateDocument(context.Background(), GenerateRequest{
		TenantID:     "tenant-1",
		ShipmentRef:  "EXP-2026-0042",
		DocumentType: "commercial_invoice",
	})
	require.NoError(t, err)
	assert.Equal(t, "draft-v2", result.Model)
	assert.Contains(t, result.Document, "COMMERCIAL INVOICE")
}

func TestGenerateDocumentRequiresType(t *testing.T) {
	c := NewClient("http://unused", "k")
	_, err := c.GenerateDocument(context.Background(), GenerateRequest{})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

func TestGenerateDocumentRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"document":"ok","model":"draft-v2"}`))
	})

	_, err := c.GenerateDocument(context.Background(), GenerateRequest{DocumentType: "packing_list"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGenerateDocumentDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := c.GenerateDocument(context.Background(), GenerateRequest{DocumentType: "packing_list"})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerateDocumentFailsFastWhenCircuitOpen(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	// two requests of three attempts each trip the five-failure breaker
	for i := 0; i < 2; i++ {
		_, err := c.GenerateDocument(context.Background(), GenerateRequest{DocumentType: "packing_list"})
		require.Error(t, err)
	}
	before := calls.Load()

	_, err := c.GenerateDocument(context.Background(), GenerateRequest{DocumentType: "packing_list"})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeCircuitOpen, dErrors.CodeOf(err))
	assert.Equal(t, before, calls.Load())
}
