package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trustcore/internal/platform/metrics"
	dErrors "trustcore/pkg/domain-errors"
)

// Operation is one attempt against the dependency. The context carries the
// per-call timeout; implementations must respect cancellation.
type Operation func(ctx context.Context) error

// Client wraps calls to one outbound dependency. Each attempt runs under a
// call timeout and through the circuit breaker; transient failures are
// retried with exponential backoff, and timeouts count against the breaker
// like any other failure.
type Client struct {
	name        string
	breaker     *Breaker
	policy      RetryPolicy
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	sleep       func(ctx context.Context, d time.Duration) error
}

type ClientOption func(*Client)

func WithBreaker(b *Breaker) ClientOption {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		if p.MaxAttempts > 0 {
			c.policy = p
		}
	}
}

// WithCallTimeout bounds each individual attempt. Default is 15 seconds.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClientMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithSleep overrides the backoff sleeper, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func NewClient(name string, opts ...ClientOption) *Client {
	c := &Client{
		name:        name,
		policy:      DefaultRetryPolicy(),
		callTimeout: 15 * time.Second,
		tracer:      otel.Tracer("trustcore/resilience"),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.breaker == nil {
		c.breaker = NewBreaker(name)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Do runs op with full protection. It returns CodeCircuitOpen without
// touching the dependency while the circuit is open, CodeTimeout when the
// attempt exceeds the call timeout, and the operation's own error otherwise.
func (c *Client) Do(ctx context.Context, opName string, op Operation) error {
	ctx, span := c.tracer.Start(ctx, c.name+"."+opName,
		trace.WithAttributes(attribute.String("dependency", c.name)))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := c.breaker.Allow(); err != nil {
			span.SetStatus(codes.Error, "circuit open")
			return err
		}

		lastErr = c.attempt(ctx, op)
		if lastErr == nil {
			if change := c.breaker.RecordSuccess(); change.Closed {
				c.transition(ctx, StateClosed)
			}
			span.SetAttributes(attribute.Int("attempts", attempt))
			return nil
		}

		if change := c.breaker.RecordFailure(); change.Opened {
			c.transition(ctx, StateOpen)
		}

		if !IsTransient(lastErr) || attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(attempt)
		c.logger.WarnContext(ctx, "outbound call failed, retrying",
			"dependency", c.name,
			"operation", opName,
			"attempt", attempt,
			"backoff", delay,
			"error", lastErr,
		)
		if c.metrics != nil {
			c.metrics.OutboundRetries.WithLabelValues(c.name).Inc()
		}
		if err := c.sleep(ctx, delay); err != nil {
			span.RecordError(err)
			return dErrors.Wrap(err, dErrors.CodeTimeout, "caller gave up during backoff")
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return lastErr
}

// attempt runs one bounded try against the dependency.
func (c *Client) attempt(ctx context.Context, op Operation) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	err := op(callCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, c.name+" call timed out")
	}
	return err
}

func (c *Client) transition(ctx context.Context, to State) {
	if c.metrics != nil {
		c.metrics.BreakerTransitions.WithLabelValues(c.name, to.String()).Inc()
	}
	switch to {
	case StateOpen:
		c.logger.ErrorContext(ctx, "circuit breaker opened", "dependency", c.name)
	case StateClosed:
		c.logger.InfoContext(ctx, "circuit breaker closed", "dependency", c.name)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
