// Package external is the boundary between the crop advisor session and the
// remote prediction service. All outbound HTTP calls are routed through the
// BaseClient, which applies trace propagation, a User-Agent and a circuit
// breaker. It never retries: a call is sent exactly once.
package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/sony/gobreaker/v2"

	"cropadvisor/internal/types"
)

// ErrCircuitOpen is returned by BaseClient.Do when the breaker rejects a call
// without sending it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerSettings configures the BaseClient circuit breaker.
type BreakerSettings struct {
	// ConsecutiveFailures before the breaker opens.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe call.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns the production breaker tuning.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// upstreamStatusError marks a 5xx response as a breaker failure while the
// response itself is still handed to the caller.
type upstreamStatusError struct {
	status int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.status)
}

// BaseClient wraps an *http.Client and a circuit breaker to enforce consistent
// behaviour on all outbound HTTP calls.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewHTTPClient returns an *http.Client whose transport negotiates gzip and
// transparently decompresses responses. No client-level timeout is set;
// callers bound calls with their context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: gzhttp.Transport(http.DefaultTransport),
	}
}

// NewBaseClient creates a BaseClient with the given http client, circuit
// breaker name and settings, and user agent string.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	settings BreakerSettings,
	userAgent string,
	logger *slog.Logger,
) *BaseClient {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultBreakerSettings().ConsecutiveFailures
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
		// A caller giving up says nothing about the upstream's health.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return NewBaseClientWithBreaker(httpClient, cb, userAgent)
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided circuit
// breaker. This is useful for testing or when sharing a breaker across clients.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	userAgent string,
) *BaseClient {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &BaseClient{
		client:    httpClient,
		breaker:   breaker,
		userAgent: userAgent,
	}
}

// Do executes the HTTP request once with:
//  1. Trace ID injection (X-B3-TraceId from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping (transport errors and 5xx count as failures)
//
// Any HTTP response, whatever its status, is returned as-is and the caller
// must close its body. A non-nil error means no response was received: either
// the transport failed or the breaker is open (ErrCircuitOpen).
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	// Inject trace ID from context if available.
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}

	// Inject User-Agent.
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 {
			return r, &upstreamStatusError{status: r.StatusCode}
		}
		return r, nil
	})

	var statusErr *upstreamStatusError
	switch {
	case err == nil:
		return resp, nil
	case errors.As(err, &statusErr) && resp != nil:
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, c.breaker.Name())
	default:
		return nil, err
	}
}

// BreakerState reports the current breaker state, for diagnostics.
func (c *BaseClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}
