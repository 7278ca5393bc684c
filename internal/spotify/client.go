// Package spotify provides optional track metadata lookup against the
// Spotify Web API. The client is a soft dependency: when credentials are
// absent or a call fails, callers get empty results instead of errors, so
// metadata never breaks the recommendation flow.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/offtrack/offtrack/internal/types"
)

const (
	defaultAccountsURL = "https://accounts.spotify.com"
	defaultAPIURL      = "https://api.spotify.com"

	// tokenSlack refreshes the app token slightly before it expires.
	tokenSlack = 30 * time.Second
)

// Client talks to the Spotify Web API using the client-credentials flow.
// The app token and the cover cache are safe for concurrent use.
type Client struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client

	accountsURL string
	apiURL      string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	covers *coverCache
}

// NewClient creates a client. Empty credentials produce a disabled client.
func NewClient(clientID, clientSecret string, coverCacheSize int) *Client {
	return &Client{
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		accountsURL:  defaultAccountsURL,
		apiURL:       defaultAPIURL,
		covers:       newCoverCache(coverCacheSize),
	}
}

// Enabled reports whether credentials are configured.
func (c *Client) Enabled() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// Search looks up tracks by free-text query. Returns nil when the client is
// disabled or the lookup fails.
func (c *Client) Search(ctx context.Context, q string, limit int) []types.SearchResult {
	if !c.Enabled() || q == "" {
		return nil
	}
	if limit <= 0 {
		limit = 8
	}

	var payload searchPayload
	endpoint := fmt.Sprintf("%s/v1/search?type=track&limit=%d&q=%s",
		c.apiURL, limit, url.QueryEscape(q))
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		slog.Debug("spotify search failed", "error", err)
		return nil
	}

	var out []types.SearchResult
	for _, item := range payload.Tracks.Items {
		artist := ""
		if len(item.Artists) > 0 {
			artist = item.Artists[0].Name
		}
		out = append(out, types.SearchResult{
			Title:    item.Name,
			Artist:   artist,
			Year:     releaseYear(item.Album.ReleaseDate),
			ID:       item.ID,
			ImageURL: pickImage(item.Album.Images),
			Source:   "spotify",
		})
	}
	return out
}

// Cover returns a cover-art URL for a title/artist pair, or "". Results,
// including misses, are cached with recency-based eviction.
func (c *Client) Cover(ctx context.Context, title, artist string) string {
	if !c.Enabled() || title == "" {
		return ""
	}

	key := strings.ToLower(title) + "||" + strings.ToLower(artist)
	if cached, ok := c.covers.get(key); ok {
		return cached
	}

	q := fmt.Sprintf("track:%q artist:%q", title, artist)
	var payload searchPayload
	endpoint := fmt.Sprintf("%s/v1/search?type=track&limit=1&q=%s",
		c.apiURL, url.QueryEscape(q))
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		slog.Debug("spotify cover lookup failed", "error", err)
		return ""
	}

	cover := ""
	if len(payload.Tracks.Items) > 0 {
		cover = pickImage(payload.Tracks.Items[0].Album.Images)
	}
	c.covers.put(key, cover)
	return cover
}

// getJSON performs an authenticated GET, decoding the JSON response.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	token, err := c.appToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("spotify responded %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// appToken returns a valid client-credentials token, refreshing when the
// cached one is within tokenSlack of expiry.
func (c *Client) appToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.token, nil
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.accountsURL+"/api/token", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request responded %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.token = payload.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return c.token, nil
}

type searchPayload struct {
	Tracks struct {
		Items []struct {
			Name    string `json:"name"`
			ID      string `json:"id"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				ReleaseDate string `json:"release_date"`
				Images      []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
		} `json:"items"`
	} `json:"tracks"`
}

// pickImage prefers the mid-sized album image, falling back to the largest.
func pickImage(images []struct {
	URL string `json:"url"`
}) string {
	switch {
	case len(images) >= 2:
		if images[1].URL != "" {
			return images[1].URL
		}
		return images[0].URL
	case len(images) == 1:
		return images[0].URL
	default:
		return ""
	}
}

// releaseYear extracts a plausible year from an album release date prefix.
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y < 1800 || y > 2100 {
		return 0
	}
	return y
}
