package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/metrics"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests
	DefaultHTTPTimeout = 120 * time.Second
	// DefaultMaxRetries is the default maximum number of retry attempts
	DefaultMaxRetries = 3
	// DefaultBaseRetryDelay is the base delay for exponential backoff
	DefaultBaseRetryDelay = 2 * time.Second
	// RateLimitBackoffMultiplier is the multiplier for rate limit backoff (3^n)
	RateLimitBackoffMultiplier = 3
)

// Client handles HTTP requests to OpenAI-compatible API endpoints
type Client struct {
	httpClient      *http.Client
	rateLimiterPool *RateLimiterPool
	logger          *slog.Logger
	metrics         *metrics.Collector
	maxRetries      int
	baseRetryDelay  time.Duration
}

// NewClient creates a new API client. A nil pool gets a pool without provider caps.
func NewClient(logger *slog.Logger, pool *RateLimiterPool) *Client {
	if pool == nil {
		pool = NewRateLimiterPool(nil, 0)
	}
	return &Client{
		// Per-request timeouts come from the model config via context
		httpClient:      &http.Client{},
		rateLimiterPool: pool,
		logger:          logger.With("component", "api"),
		maxRetries:      DefaultMaxRetries,
		baseRetryDelay:  DefaultBaseRetryDelay,
	}
}

// SetMetrics attaches a metrics collector
func (c *Client) SetMetrics(m *metrics.Collector) {
	c.metrics = m
}

// ChatCompletion sends a chat completion request to the specified model
func (c *Client) ChatCompletion(
	ctx context.Context,
	modelCfg config.ModelConfig,
	apiKey string,
	messages []Message,
) (*ChatCompletionResponse, error) {
	req := ChatCompletionRequest{
		Model:       modelCfg.ModelName,
		Messages:    messages,
		Temperature: modelCfg.Temperature,
		TopP:        modelCfg.TopP,
		MaxTokens:   modelCfg.MaxOutputTokens,
		N:           1,
	}
	return c.chat(ctx, modelCfg, apiKey, req)
}

// ChatCompletionStructured requests output constrained by a JSON schema.
// The structure temperature is used when configured. Models with use_json_mode
// disabled get the schema only through the prompt.
func (c *Client) ChatCompletionStructured(
	ctx context.Context,
	modelCfg config.ModelConfig,
	apiKey string,
	messages []Message,
	schema *JSONSchema,
) (*ChatCompletionResponse, error) {
	temperature := modelCfg.Temperature
	if modelCfg.StructureTemperature > 0 {
		temperature = modelCfg.StructureTemperature
	}
	req := ChatCompletionRequest{
		Model:       modelCfg.ModelName,
		Messages:    messages,
		Temperature: temperature,
		TopP:        modelCfg.TopP,
		MaxTokens:   modelCfg.MaxOutputTokens,
		N:           1,
	}
	if modelCfg.UseJSONMode && schema != nil {
		req.ResponseFormat = &ResponseFormat{Type: "json_schema", JSONSchema: schema}
	}
	return c.chat(ctx, modelCfg, apiKey, req)
}

func (c *Client) chat(ctx context.Context, modelCfg config.ModelConfig, apiKey string, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := c.call(ctx, modelCfg, apiKey, "chat/completions", req)
	if err != nil {
		return nil, err
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned in response")
	}
	if resp.Choices[0].FinishReason == "length" {
		c.logger.Warn("Response truncated by max_tokens",
			"model", modelCfg.ModelName,
			"max_tokens", modelCfg.MaxOutputTokens)
	}
	return &resp, nil
}

// call rate-limits, retries and returns the raw 200 response body of a POST to path
func (c *Client) call(ctx context.Context, modelCfg config.ModelConfig, apiKey, path string, payload any) ([]byte, error) {
	modelID := fmt.Sprintf("%s:%s", modelCfg.BaseURL, modelCfg.ModelName)
	provider := config.GetProviderName(modelCfg.BaseURL)

	waited, err := c.rateLimiterPool.Wait(ctx, provider, modelID, max(1, modelCfg.RateLimitPerMinute))
	if err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	c.metrics.RecordRateLimiterWait(modelCfg.ModelName, waited)

	buf, err := encodeBody(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	defer putBuffer(buf)

	endpoint := strings.TrimRight(modelCfg.BaseURL, "/") + "/" + path
	maxRetries := c.retriesFor(modelCfg)
	maxBackoff := time.Duration(modelCfg.MaxBackoffSeconds) * time.Second

	var lastErr error
	for attempt := 0; maxRetries < 0 || attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sleep := c.backoff(attempt, lastErr, maxBackoff)
			c.logger.Warn("Retrying API request",
				"attempt", attempt,
				"max_retries", maxRetries,
				"backoff", sleep,
				"model", modelCfg.ModelName,
				"endpoint", path,
				"is_rate_limit", isRateLimitError(lastErr))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
		}

		start := time.Now()
		body, err := c.doRequest(ctx, endpoint, apiKey, buf.Bytes(), modelCfg.HTTPTimeoutSeconds)
		c.metrics.RecordAPIRequest(modelCfg.ModelName, path, time.Since(start), err == nil)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) retriesFor(modelCfg config.ModelConfig) int {
	if modelCfg.MaxRetries != 0 {
		return modelCfg.MaxRetries
	}
	return c.maxRetries
}

// backoff is 2^(n-1) x base, or 3^n x base after a 429, with +-10% jitter
func (c *Client) backoff(attempt int, lastErr error, ceiling time.Duration) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt-1))) * c.baseRetryDelay
	if isRateLimitError(lastErr) {
		d = time.Duration(math.Pow(RateLimitBackoffMultiplier, float64(attempt))) * c.baseRetryDelay
	}
	if ceiling > 0 && d > ceiling {
		d = ceiling
	}
	jitter := time.Duration(float64(d) * 0.1 * (2*rand.Float64() - 1))
	return d + jitter
}

func (c *Client) doRequest(ctx context.Context, endpoint, apiKey string, body []byte, timeoutSeconds int) ([]byte, error) {
	timeout := DefaultHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	} else {
		c.logger.Debug("API request without key", "endpoint", endpoint)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The caller's own cancellation is final; anything else is a transport error worth retrying
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &APIError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
		}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &APIError{
			Message:   fmt.Sprintf("failed to read response: %v", err),
			Retryable: true,
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		retryable := isStatusCodeRetryable(httpResp.StatusCode)

		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, &APIError{
				Message:    errResp.Error.Message,
				StatusCode: httpResp.StatusCode,
				Type:       errResp.Error.Type,
				Code:       errResp.Error.Code,
				Retryable:  retryable,
			}
		}
		return nil, &APIError{
			Message:    fmt.Sprintf("API request failed with status %d: %s", httpResp.StatusCode, truncate(respBody, 500)),
			StatusCode: httpResp.StatusCode,
			Retryable:  retryable,
		}
	}

	return respBody, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

func isRateLimitError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func isStatusCodeRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// APIError represents an error returned by the API
type APIError struct {
	Message    string
	StatusCode int
	Type       string
	Code       string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}
