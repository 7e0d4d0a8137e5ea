package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"cropadvisor/internal/types"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// AdvisorClientConfig holds the configuration for creating an AdvisorClient.
type AdvisorClientConfig struct {
	BaseURL   string // e.g. http://localhost:3001/api
	UserAgent string
	Breaker   BreakerSettings
	Logger    *slog.Logger
}

// AdvisorClient is the typed wrapper over the prediction service's recommend
// and weather endpoints. Every failure is reported as a *types.APIError.
//
// Each endpoint has its own breaker, so a failing weather provider never
// blocks recommendations and vice versa.
type AdvisorClient struct {
	recommend *endpoint
	weather   *endpoint
	baseURL   string
	payloads  *validator.Validate
	logger    *slog.Logger
}

// endpoint pairs a breaker-guarded client with the last 5xx it returned.
type endpoint struct {
	base *BaseClient
	// lastFailure is the most recent upstream 5xx, reported again while the
	// breaker is open. Any other outcome clears it.
	lastFailure atomic.Pointer[types.APIError]
}

// NewAdvisorClient creates a new AdvisorClient using a gzip-aware http client.
func NewAdvisorClient(httpClient *http.Client, cfg AdvisorClientConfig) *AdvisorClient {
	return NewAdvisorClientWithBases(
		NewBaseClient(httpClient, "advisor-recommend", cfg.Breaker, cfg.UserAgent, cfg.Logger),
		NewBaseClient(httpClient, "advisor-weather", cfg.Breaker, cfg.UserAgent, cfg.Logger),
		cfg,
	)
}

// NewAdvisorClientWithBases creates an AdvisorClient with pre-configured
// BaseClients for the recommend and weather endpoints. This is useful for
// testing when you want to control the breaker configuration.
func NewAdvisorClientWithBases(recommend, weather *BaseClient, cfg AdvisorClientConfig) *AdvisorClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvisorClient{
		recommend: &endpoint{base: recommend},
		weather:   &endpoint{base: weather},
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		payloads:  newPayloadValidator(),
		logger:    logger,
	}
}

// FetchRecommendation posts sample to the recommend endpoint.
//
// Error mapping:
//   - non-2xx -> APIError{message from body or "request failed with status N", status}
//   - open breaker -> the last 5xx APIError, wrapping ErrCircuitOpen
//   - transport failure, invalid 2xx body -> APIError{"network failure"}
func (c *AdvisorClient) FetchRecommendation(ctx context.Context, sample types.SoilSample) (*types.Recommendation, error) {
	body, err := json.Marshal(sample)
	if err != nil {
		return nil, types.NewNetworkError(fmt.Errorf("encoding soil sample: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recommend", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewNetworkError(fmt.Errorf("building recommend request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	var payload recommendationPayload
	if err := c.do(c.recommend, req, &payload); err != nil {
		return nil, err
	}
	return payload.recommendation(), nil
}

// FetchWeather requests the current weather for city.
// Errors are mapped exactly as for FetchRecommendation.
func (c *AdvisorClient) FetchWeather(ctx context.Context, city string) (*types.WeatherSnapshot, error) {
	reqURL := c.baseURL + "/weather?" + url.Values{"city": {city}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewNetworkError(fmt.Errorf("building weather request: %w", err))
	}

	var payload weatherPayload
	if err := c.do(c.weather, req, &payload); err != nil {
		return nil, err
	}
	return payload.snapshot(), nil
}

// do sends req once through ep and decodes a 2xx JSON body into out. out must
// be a freshly allocated payload: on any error it is discarded by the caller.
func (c *AdvisorClient) do(ep *endpoint, req *http.Request, out any) error {
	ctx := req.Context()
	path := req.URL.Path

	req.Header.Set("Accept", "application/json")
	resp, err := ep.base.Do(req)
	if err != nil {
		if last := ep.lastFailure.Load(); last != nil && errors.Is(err, ErrCircuitOpen) {
			c.logger.WarnContext(ctx, "advisor call rejected by open breaker",
				"endpoint", path,
				"status", last.StatusCode(),
			)
			return &types.APIError{Message: last.Message, Status: last.Status, Err: err}
		}
		ep.lastFailure.Store(nil)
		c.logger.WarnContext(ctx, "advisor request failed",
			"endpoint", path,
			"error", err,
		)
		return types.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := types.NewStatusError(resp.StatusCode, errorMessage(resp.Body))
		if resp.StatusCode >= 500 {
			ep.lastFailure.Store(apiErr)
		} else {
			ep.lastFailure.Store(nil)
		}
		c.logger.WarnContext(ctx, "advisor returned error status",
			"endpoint", path,
			"status", resp.StatusCode,
			"message", apiErr.Message,
		)
		return apiErr
	}
	ep.lastFailure.Store(nil)

	if err := decodePayload(c.payloads, resp.Body, out); err != nil {
		c.logger.WarnContext(ctx, "advisor returned malformed body",
			"endpoint", path,
			"error", err,
		)
		return types.NewNetworkError(fmt.Errorf("malformed response body: %w", err))
	}
	return nil
}

// errorMessage extracts the "message" field from a structured error body.
// It returns "" when the body is absent or not the expected JSON.
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}
