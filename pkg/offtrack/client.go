// Package offtrack is a small HTTP client for the Offtrack recommendation
// service. It mirrors the server's /api/v1 surface.
package offtrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config configures a Client.
type Config struct {
	// BaseURL points at the server, e.g. "http://localhost:8000".
	BaseURL string
	// APIKey authorizes privileged calls like Reload. Optional.
	APIKey string
	// DistinctID identifies this caller for personalization. Optional.
	DistinctID string
	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client
}

// Client talks to one Offtrack server. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	distinctID string
	httpClient *http.Client
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		distinctID: cfg.DistinctID,
		httpClient: httpClient,
	}, nil
}

// Ping checks liveness and engine readiness.
func (c *Client) Ping(ctx context.Context) (PingResponse, error) {
	var out PingResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/ping", nil, &out)
	return out, err
}

// Health returns server health details.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &out)
	return out, err
}

// Search looks up tracks by free text.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	path := "/api/v1/search?q=" + url.QueryEscape(query)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var out searchResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Recommend requests recommendations for the given seeds.
func (c *Client) Recommend(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	var out recommendResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/recommend", req, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// Feedback records like/dislike/skip events under the client's distinct id.
func (c *Client) Feedback(ctx context.Context, items []FeedbackItem) (FeedbackResponse, error) {
	var out FeedbackResponse
	req := feedbackRequest{DistinctID: c.distinctID, Items: items}
	err := c.do(ctx, http.MethodPost, "/api/v1/feedback", req, &out)
	return out, err
}

// Reload asks the server to rebuild its snapshot. Requires an API key.
func (c *Client) Reload(ctx context.Context) (ReloadResponse, error) {
	var out ReloadResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/reload", nil, &out)
	return out, err
}

// APIError is a non-2xx response from the server, carrying the RFC 7807
// problem detail when one was returned.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("offtrack: %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("offtrack: unexpected status %d", e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.distinctID != "" {
		req.Header.Set("X-User-Id", c.distinctID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var problem struct {
			Detail string `json:"detail"`
		}
		if json.NewDecoder(resp.Body).Decode(&problem) == nil {
			apiErr.Detail = problem.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
