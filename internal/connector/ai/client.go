// Package ai calls the document-drafting service. Every call goes through
// the resilience client: the drafting vendor is the least reliable dependency
// this system has, and a slow vendor must not pile up goroutines here.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"trustcore/internal/resilience"
	dErrors "trustcore/pkg/domain-errors"
)

// GenerateRequest asks for a draft of one trade document.
type GenerateRequest struct {
	TenantID     string `json:"tenant_id"`
	ShipmentRef  string `json:"shipment_ref"`
	DocumentType string `json:"document_type"`
	Instructions string `json:"instructions,omitempty"`
}

// GenerateResult is the drafted document.
type GenerateResult struct {
	Document string `json:"document"`
	Model    string `json:"model"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	resilient  *resilience.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithResilience(rc *resilience.Client) Option {
	return func(c *Client) {
		if rc != nil {
			c.resilient = rc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resilient == nil {
		c.resilient = resilience.NewClient("ai_drafting")
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// GenerateDocument drafts a document, retrying transient vendor failures and
// failing fast while the vendor's circuit is open.
func (c *Client) GenerateDocument(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.DocumentType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document type is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode drafting request")
	}

	var result GenerateResult
	err = c.resilient.Do(ctx, "generate", func(ctx context.Context) error {
		return c.post(ctx, "/v1/documents/generate", body, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build drafting request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// transport-level failure; the resilience layer decides about retries
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "drafting service unreachable")
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "malformed drafting response")
	}
	return nil
}

// classifyStatus maps vendor HTTP statuses to domain codes. 5xx and 429 are
// transient; everything else in 4xx would fail the same way on retry.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return dErrors.New(dErrors.CodeUnavailable, "drafting service throttled us")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return dErrors.New(dErrors.CodeUnauthorized, "drafting service rejected credentials")
	case status >= 500:
		return dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("drafting service error (%d)", status))
	default:
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("drafting service rejected request (%d)", status))
	}
}
