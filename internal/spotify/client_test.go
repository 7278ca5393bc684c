package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeSpotify stands in for both the accounts and API hosts.
type fakeSpotify struct {
	tokenCalls  atomic.Int64
	searchCalls atomic.Int64
	expiresIn   int
}

func (f *fakeSpotify) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		expires := f.expiresIn
		if expires == 0 {
			expires = 3600
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_in":   expires,
		})
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		f.searchCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"tracks":{"items":[{
			"name":"Nightcall","id":"sp1",
			"artists":[{"name":"Kavinsky"}],
			"album":{"release_date":"2010-12-03","images":[
				{"url":"https://img/large"},{"url":"https://img/mid"}]}
		}]}}`)
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeSpotify) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	c := NewClient("id", "secret", 4)
	c.accountsURL = srv.URL
	c.apiURL = srv.URL
	return c
}

func TestSearchParsesTracks(t *testing.T) {
	// Given a responding API, When searching, Then results carry the
	// mid-sized image and parsed release year.
	c := newTestClient(t, &fakeSpotify{})

	results := c.Search(context.Background(), "nightcall", 5)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Title != "Nightcall" || r.Artist != "Kavinsky" || r.ID != "sp1" {
		t.Errorf("unexpected result %+v", r)
	}
	if r.Year != 2010 {
		t.Errorf("expected year 2010, got %d", r.Year)
	}
	if r.ImageURL != "https://img/mid" {
		t.Errorf("expected mid image, got %q", r.ImageURL)
	}
	if r.Source != "spotify" {
		t.Errorf("expected source spotify, got %q", r.Source)
	}
}

func TestTokenReused(t *testing.T) {
	// Given a long-lived token, When issuing two calls, Then a single
	// token exchange happens.
	fake := &fakeSpotify{}
	c := newTestClient(t, fake)

	c.Search(context.Background(), "a", 1)
	c.Search(context.Background(), "b", 1)

	if got := fake.tokenCalls.Load(); got != 1 {
		t.Errorf("expected 1 token call, got %d", got)
	}
	if got := fake.searchCalls.Load(); got != 2 {
		t.Errorf("expected 2 search calls, got %d", got)
	}
}

func TestTokenRefreshedNearExpiry(t *testing.T) {
	// Given a token expiring inside the refresh slack, When a second call
	// happens, Then the token is exchanged again.
	fake := &fakeSpotify{expiresIn: 5}
	c := newTestClient(t, fake)

	c.Search(context.Background(), "a", 1)
	c.Search(context.Background(), "b", 1)

	if got := fake.tokenCalls.Load(); got != 2 {
		t.Errorf("expected 2 token calls, got %d", got)
	}
}

func TestDisabledClientReturnsNothing(t *testing.T) {
	c := NewClient("", "", 4)

	if c.Enabled() {
		t.Fatal("client without credentials should be disabled")
	}
	if got := c.Search(context.Background(), "q", 5); got != nil {
		t.Errorf("disabled search should return nil, got %v", got)
	}
	if got := c.Cover(context.Background(), "t", "a"); got != "" {
		t.Errorf("disabled cover should return empty, got %q", got)
	}
}

func TestCoverCached(t *testing.T) {
	// Given one cover lookup, When repeated, Then the API is hit once.
	fake := &fakeSpotify{}
	c := newTestClient(t, fake)

	first := c.Cover(context.Background(), "Nightcall", "Kavinsky")
	second := c.Cover(context.Background(), "nightcall", "KAVINSKY")

	if first != "https://img/mid" || second != first {
		t.Errorf("expected cached mid image, got %q / %q", first, second)
	}
	if got := fake.searchCalls.Load(); got != 1 {
		t.Errorf("expected 1 search call, got %d", got)
	}
}

func TestAPIFailureIsSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("id", "secret", 4)
	c.accountsURL = srv.URL
	c.apiURL = srv.URL

	if got := c.Search(context.Background(), "q", 5); got != nil {
		t.Errorf("failed search should return nil, got %v", got)
	}
	if got := c.Cover(context.Background(), "t", "a"); got != "" {
		t.Errorf("failed cover should return empty, got %q", got)
	}
}

func TestCoverCacheEvictsOldest(t *testing.T) {
	cache := newCoverCache(2)
	cache.put("a", "1")
	cache.put("b", "2")
	cache.get("a") // refresh recency
	cache.put("c", "3")

	if _, ok := cache.get("b"); ok {
		t.Error("expected least recently used entry to be evicted")
	}
	if v, ok := cache.get("a"); !ok || v != "1" {
		t.Error("expected recently used entry to survive")
	}
	if cache.len() != 2 {
		t.Errorf("expected cache size 2, got %d", cache.len())
	}
}

func TestReleaseYear(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2010-12-03", 2010},
		{"1999", 1999},
		{"", 0},
		{"abc", 0},
		{"0001-01-01", 0},
	}
	for _, tc := range tests {
		if got := releaseYear(tc.date); got != tc.want {
			t.Errorf("releaseYear(%q) = %d, want %d", tc.date, got, tc.want)
		}
	}
}
