// Package client calls the sillage HTTP API and formats its responses for
// terminals and MCP tools.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/use-agent/sillage/models"
)

// Client talks to one sillage server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a Client. apiKey may be empty when auth is disabled.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// APIError is a non-200 answer from the server.
type APIError struct {
	Status int
	Detail *models.ErrorDetail
	Body   string
}

func (e *APIError) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("API returned %d: %s: %s", e.Status, e.Detail.Code, e.Detail.Message)
	}
	return fmt.Sprintf("API returned %d: %s", e.Status, e.Body)
}

// Scrape posts urls to /api/v1/scrape. maxAge of zero bypasses the
// server cache.
func (c *Client) Scrape(ctx context.Context, urls []string, maxAge time.Duration) (*models.ScrapeResponse, []byte, error) {
	payload := models.ScrapeRequest{URLs: urls, MaxAge: int(maxAge.Milliseconds())}
	body, err := c.do(ctx, http.MethodPost, "/api/v1/scrape", payload)
	if err != nil {
		return nil, body, err
	}
	var resp models.ScrapeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, body, fmt.Errorf("client: parse scrape response: %w", err)
	}
	return &resp, body, nil
}

// Health fetches /api/v1/health.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return nil, err
	}
	var resp models.HealthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("client: parse health response: %w", err)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("client: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(body)}
		var env models.ErrorResponse
		if json.Unmarshal(body, &env) == nil {
			apiErr.Detail = env.Error
		}
		return body, apiErr
	}
	return body, nil
}
