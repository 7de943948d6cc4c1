// Package assist calls the external language-model assistance collaborator.
// The collaborator is optional and fallible: a missing or failing client
// must never abort a session, only reduce it to the unresolved-field path.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/config"
)

// HTTPClient implements schemas.AssistClient over a JSON request/response
// endpoint, with bounded retries on transient errors.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	maxElapsed time.Duration
	httpClient *http.Client
	log        *zap.Logger
}

// answerPayload is the wire response.
type answerPayload struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// NewHTTPClient initializes the client from configuration. A disabled
// config yields (nil, nil): the caller wires the unresolved-field path.
func NewHTTPClient(cfg config.AssistConfig, logger *zap.Logger) (*HTTPClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("assist endpoint is required when assistance is enabled")
	}
	return &HTTPClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxElapsed: cfg.MaxElapsed,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.Named("assist"),
	}, nil
}

// Answer submits one question with minimal applicant context and returns
// the collaborator's answer and stated confidence. Transient HTTP errors
// are retried with exponential backoff up to the configured elapsed budget.
func (c *HTTPClient) Answer(ctx context.Context, req schemas.AssistRequest) (schemas.AssistAnswer, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return schemas.AssistAnswer{}, fmt.Errorf("failed to marshal assist request: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxElapsed
	b.MaxInterval = 10 * time.Second

	var answer schemas.AssistAnswer
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.log.Warn("Network error during assist request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var payload answerPayload
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode assist response: %w", err))
		}
		if payload.Error != "" {
			return backoff.Permanent(fmt.Errorf("assist collaborator returned error: %s", payload.Error))
		}
		if payload.Confidence < 0 || payload.Confidence > 1 {
			return backoff.Permanent(fmt.Errorf("assist confidence %v outside [0,1]", payload.Confidence))
		}

		c.log.Debug("Assist call complete",
			zap.Duration("duration", time.Since(start)),
			zap.Float64("confidence", payload.Confidence))
		answer = schemas.AssistAnswer{Value: payload.Value, Confidence: payload.Confidence}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return schemas.AssistAnswer{}, err
	}
	return answer, nil
}

func (c *HTTPClient) handleAPIError(statusCode int, body []byte) error {
	err := fmt.Errorf("assist API error: status %d, body: %s", statusCode, string(body))
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}
