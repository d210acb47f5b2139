// Package lookup calls the external data services. Every invocation is
// deadline-bounded and classified into success, timeout, or service error so
// the pipeline can apply the right refund.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"infobroker/internal/catalog"
	"infobroker/internal/platform/metrics"
	"infobroker/pkg/circuit"
	dErrors "infobroker/pkg/domainerrors"
)

var tracer = otel.Tracer("infobroker/lookup")

const userAgent = "InfoBroker/1.0"

// maxResponseBytes caps how much of an upstream body we read.
const maxResponseBytes = 1 << 20

// breakerCooldown is how long a tripped service stays suspended before the
// next call is let through to test it.
const breakerCooldown = time.Minute

type Client struct {
	http     *http.Client
	timeout  time.Duration
	cooldown time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[string]*circuit.Breaker
}

// NewClient builds a lookup client. Timeout bounds every invocation; the
// per-service circuit breaker sheds calls to an upstream that keeps failing
// and retries it once the cooldown elapses.
func NewClient(timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		// The context deadline is the real bound; the transport timeout is a
		// backstop for callers that pass an unbounded context.
		http:     &http.Client{Timeout: timeout + time.Second},
		timeout:  timeout,
		cooldown: breakerCooldown,
		metrics:  m,
		logger:   logger,
		breakers: make(map[string]*circuit.Breaker),
	}
}

func (c *Client) breaker(key string) *circuit.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[key]
	if !ok {
		b = circuit.New(key,
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(1),
			circuit.WithCooldown(c.cooldown))
		c.breakers[key] = b
	}
	return b
}

// Invoke queries the service with the normalized value and returns the raw
// JSON document. Errors carry CodeTimeout for deadline expiry and
// CodeUnavailable for every other upstream failure.
func (c *Client) Invoke(ctx context.Context, svc catalog.Service, query string) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "lookup.invoke",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("lookup.service", svc.Key)))
	defer span.End()

	breaker := c.breaker(svc.Key)
	if !breaker.Allow() {
		return nil, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("%s service suspended after repeated failures", svc.Key))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := svc.QueryURL(url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build lookup request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range svc.ExtraHeaders {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.LookupDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		breaker.RecordFailure()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, fmt.Sprintf("%s service timed out", svc.Key))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("%s service unreachable", svc.Key))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		breaker.RecordFailure()
		c.logger.WarnContext(ctx, "lookup service error", "service", svc.Key, "status", resp.StatusCode)
		return nil, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("%s service returned status %d", svc.Key, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		breaker.RecordFailure()
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("read %s response", svc.Key))
	}
	if !json.Valid(body) {
		breaker.RecordFailure()
		return nil, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("%s service returned malformed payload", svc.Key))
	}

	breaker.RecordSuccess()
	return json.RawMessage(body), nil
}
