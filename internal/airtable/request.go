package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spigell/applicant-pipeline/internal/utils"
	"go.uber.org/zap"
)

const (
	contentType = "application/json"
	// Airtable asks clients to back off for 30 seconds after a 429,
	// the first wait is kept shorter and doubled on every retry.
	rateLimitBackoff = 5 * time.Second
)

// wait is swapped in tests.
var wait = utils.WaitFor

// APIError is returned for every non-2xx answer from Airtable.
type APIError struct {
	StatusCode int
	Status     string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("bad status: %s: %s: %s", e.Status, e.Type, e.Message)
	case e.Type != "":
		return fmt.Sprintf("bad status: %s: %s", e.Status, e.Type)
	default:
		return fmt.Sprintf("bad status: %s", e.Status)
	}
}

// IsNotFound reports whether err is an Airtable 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

type errorDetails struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// doJSON sends payload (if any) as JSON and decodes a 2xx answer into target (if any).
func (c *Client) doJSON(ctx context.Context, method, url string, payload, target any) error {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = data
	}

	backoff := rateLimitBackoff
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return err
		}

		req = c.setHeaders(req)
		if payload != nil {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.request(req)
		if err != nil {
			return err
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.RateRetries {
			c.logger.Warn("rate limited by airtable",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			if err := wait(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return parseError(resp, data)
		}

		if target == nil {
			return nil
		}

		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}

		return nil
	}
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)

	return req
}

// parseError understands both error shapes Airtable uses:
// {"error": "NOT_FOUND"} and {"error": {"type": ..., "message": ...}}.
func parseError(resp *http.Response, data []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}

	var envelope errorResponse
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Error) == 0 {
		return apiErr
	}

	var details errorDetails
	if err := json.Unmarshal(envelope.Error, &details); err == nil {
		apiErr.Type = details.Type
		apiErr.Message = details.Message
		return apiErr
	}

	var kind string
	if err := json.Unmarshal(envelope.Error, &kind); err == nil {
		apiErr.Type = kind
	}

	return apiErr
}
