// Package analytics sends product usage events to a PostHog-compatible
// capture endpoint. Capture is fire-and-forget: it never blocks a request
// and never surfaces errors to callers.
package analytics

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client captures events. A client without an API key is disabled and all
// calls become no-ops.
type Client struct {
	apiKey     string
	host       string
	httpClient *http.Client
}

// NewClient creates a capture client. Empty apiKey disables capture.
func NewClient(apiKey, host string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		host:       strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether events will actually be sent.
func (c *Client) Enabled() bool {
	return c.apiKey != "" && c.host != ""
}

// Capture sends one event in the background. Failures are logged at debug
// and otherwise swallowed.
func (c *Client) Capture(distinctID, event string, properties map[string]any) {
	if !c.Enabled() {
		return
	}

	payload := map[string]any{
		"api_key":     c.apiKey,
		"event":       event,
		"distinct_id": distinctID,
		"properties":  properties,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Debug("analytics payload marshal failed", "error", err)
		return
	}

	go func() {
		resp, err := c.httpClient.Post(c.host+"/capture/", "application/json",
			bytes.NewReader(body))
		if err != nil {
			slog.Debug("analytics capture failed", "event", event, "error", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			slog.Debug("analytics capture rejected", "event", event, "status", resp.StatusCode)
		}
	}()
}

// DistinctID derives a stable caller identity for an HTTP request: an
// explicit header when present, otherwise a fingerprint of the client
// address and user agent.
func DistinctID(r *http.Request) string {
	for _, header := range []string{"X-Analytics-Distinct-Id", "X-User-Id"} {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
	}

	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i > 0 {
		ip = ip[:i]
	}
	sum := sha256.Sum256([]byte(ip + "|" + r.UserAgent()))
	return "anon-" + hex.EncodeToString(sum[:8])
}
