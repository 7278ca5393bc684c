package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDisabledClientNeverSends(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient("", srv.URL)
	if c.Enabled() {
		t.Fatal("client without key should be disabled")
	}
	c.Capture("u1", "recommend", nil)
	time.Sleep(50 * time.Millisecond)
	if got := hits.Load(); got != 0 {
		t.Errorf("expected no capture calls, got %d", got)
	}
}

func TestCaptureSendsEvent(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/capture/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		received <- payload
	}))
	defer srv.Close()

	c := NewClient("phc_test", srv.URL)
	c.Capture("u1", "recommend", map[string]any{"mode": "indie"})

	select {
	case payload := <-received:
		if payload["event"] != "recommend" {
			t.Errorf("expected event recommend, got %v", payload["event"])
		}
		if payload["distinct_id"] != "u1" {
			t.Errorf("expected distinct_id u1, got %v", payload["distinct_id"])
		}
		props, _ := payload["properties"].(map[string]any)
		if props["mode"] != "indie" {
			t.Errorf("expected mode property, got %v", props)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("capture was never delivered")
	}
}

func TestCaptureSurvivesServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("phc_test", srv.URL)
	// Must not panic or block.
	c.Capture("u1", "recommend", nil)
	time.Sleep(50 * time.Millisecond)
}

func TestDistinctIDPrefersHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-User-Id", "user-42")
	if got := DistinctID(r); got != "user-42" {
		t.Errorf("expected header identity, got %q", got)
	}

	r.Header.Set("X-Analytics-Distinct-Id", "tracked-7")
	if got := DistinctID(r); got != "tracked-7" {
		t.Errorf("expected analytics header to win, got %q", got)
	}
}

func TestDistinctIDFingerprintIsStable(t *testing.T) {
	a := httptest.NewRequest(http.MethodGet, "/", nil)
	a.RemoteAddr = "10.0.0.1:5511"
	a.Header.Set("User-Agent", "test-agent")

	b := httptest.NewRequest(http.MethodGet, "/", nil)
	b.RemoteAddr = "10.0.0.1:9922" // same host, different port
	b.Header.Set("User-Agent", "test-agent")

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:5511"
	other.Header.Set("User-Agent", "test-agent")

	if DistinctID(a) != DistinctID(b) {
		t.Error("fingerprint should ignore the client port")
	}
	if DistinctID(a) == DistinctID(other) {
		t.Error("different hosts should fingerprint differently")
	}
}
