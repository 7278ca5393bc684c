package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/offtrack/offtrack/internal/analytics"
	"github.com/offtrack/offtrack/internal/engine"
	"github.com/offtrack/offtrack/internal/spotify"
	"github.com/offtrack/offtrack/internal/store"
	"github.com/offtrack/offtrack/internal/types"
)

const testAPIKey = "test-api-key"

// testServer wires a real in-memory store and loaded engine behind the
// router. Spotify and analytics are disabled so lookups stay local.
type testServer struct {
	store   *store.SQLiteStore
	engine  *engine.Engine
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T, trackCount int) *testServer {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	if trackCount > 0 {
		tracks := make([]types.Track, trackCount)
		for i := range tracks {
			tracks[i] = catalogTrack(i)
		}
		if err := s.ReplaceTracks(context.Background(), tracks); err != nil {
			t.Fatal(err)
		}
	}

	eng := engine.New(s, engine.DefaultParams())
	if trackCount > 0 {
		if err := eng.Load(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	h := NewHandler(s, eng,
		spotify.NewClient("", "", 8),
		analytics.NewClient("", ""),
		testAPIKey, "test")
	return &testServer{
		store:   s,
		engine:  eng,
		handler: h,
		router:  NewRouter(h, []string{"*"}),
	}
}

func catalogTrack(i int) types.Track {
	return types.Track{
		ID:         fmt.Sprintf("track-%03d", i),
		Title:      fmt.Sprintf("Song %d", i),
		Artist:     fmt.Sprintf("Artist %d", i%5),
		Year:       1990 + i%30,
		Popularity: (i * 13) % 100,
		Features: types.AudioFeatures{
			Valence:          float64(i%11) / 10,
			Acousticness:     float64((i+2)%11) / 10,
			Danceability:     float64((i+5)%11) / 10,
			Energy:           float64((i+7)%11) / 10,
			Instrumentalness: float64(i%3) / 4,
			Liveness:         0.1,
			Loudness:         -8 + float64(i%6),
			Speechiness:      0.05,
			Tempo:            90 + float64(i%60),
		},
		Cluster: i % 4,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestPing(t *testing.T) {
	ts := newTestServer(t, 20)

	rec := ts.do(t, http.MethodGet, "/api/v1/ping", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[types.PingResponse](t, rec)
	if !resp.OK || !resp.EngineReady {
		t.Errorf("expected ready ping, got %+v", resp)
	}
}

func TestPingReportsLoadError(t *testing.T) {
	ts := newTestServer(t, 0) // empty catalog, engine never loaded
	ts.handler.RecordLoadError(fmt.Errorf("track data unavailable"))

	resp := decode[types.PingResponse](t, ts.do(t, http.MethodGet, "/api/v1/ping", nil, nil))
	if resp.EngineReady {
		t.Error("engine should not be ready")
	}
	if resp.EngineError == "" {
		t.Error("expected engine_error to carry the load failure")
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 20)

	rec := ts.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[types.HealthResponse](t, rec)
	if resp.Status != "healthy" || resp.TrackCount != 20 {
		t.Errorf("unexpected health %+v", resp)
	}
	if resp.LastLoad == nil {
		t.Error("expected last_load after engine load")
	}
	if !resp.Clustering {
		t.Error("expected clustering enabled for fully labeled catalog")
	}
}

func TestSearchFallsBackToCatalog(t *testing.T) {
	// Spotify is disabled in tests, so the catalog answers.
	ts := newTestServer(t, 20)

	rec := ts.do(t, http.MethodGet, "/api/v1/search?q=Song+1&limit=5", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[types.SearchResponse](t, rec)
	if len(resp.Results) == 0 {
		t.Fatal("expected catalog hits")
	}
	for _, r := range resp.Results {
		if r.Source != "db" {
			t.Errorf("expected source db, got %q", r.Source)
		}
		if !strings.Contains(r.Title, "Song 1") {
			t.Errorf("unexpected hit %q", r.Title)
		}
	}
}

func TestSearchShortQueryReturnsEmpty(t *testing.T) {
	ts := newTestServer(t, 20)

	resp := decode[types.SearchResponse](t, ts.do(t, http.MethodGet, "/api/v1/search?q=x", nil, nil))
	if len(resp.Results) != 0 {
		t.Errorf("expected no results for short query, got %d", len(resp.Results))
	}
}

func TestRecommend(t *testing.T) {
	ts := newTestServer(t, 60)

	req := types.RecommendRequest{
		Seeds: []types.Seed{{ID: "track-003"}},
		N:     5,
		Mode:  "all",
	}
	rec := ts.do(t, http.MethodPost, "/api/v1/recommend", req, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[types.RecommendResponse](t, rec)
	if len(resp.Recommendations) == 0 || len(resp.Recommendations) > 5 {
		t.Fatalf("expected 1..5 recommendations, got %d", len(resp.Recommendations))
	}
	for _, r := range resp.Recommendations {
		if r.ID == "track-003" {
			t.Error("seed must not be recommended")
		}
		if r.Source != "db" {
			t.Errorf("expected source db, got %q", r.Source)
		}
		if r.Similarity < -1.0001 || r.Similarity > 1.0001 {
			t.Errorf("similarity out of range: %f", r.Similarity)
		}
	}
}

func TestRecommendInvalidJSON(t *testing.T) {
	ts := newTestServer(t, 20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommend", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem content type, got %q", ct)
	}
}

func TestRecommendValidationFailure(t *testing.T) {
	ts := newTestServer(t, 20)

	req := types.RecommendRequest{N: -1, Mode: "obscure"}
	rec := ts.do(t, http.MethodPost, "/api/v1/recommend", req, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	resp := decode[ProblemWithErrors](t, rec)
	if len(resp.Errors) < 2 {
		t.Errorf("expected field errors for n and mode, got %v", resp.Errors)
	}
}

func TestRecommendEngineNotLoaded(t *testing.T) {
	ts := newTestServer(t, 0)

	req := types.RecommendRequest{Seeds: []types.Seed{{Title: "anything"}}, N: 5}
	rec := ts.do(t, http.MethodPost, "/api/v1/recommend", req, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before first load, got %d", rec.Code)
	}
}

func TestRecommendUsesStoredFeedback(t *testing.T) {
	// Given stored likes for the caller and no explicit liked_ids, When
	// recommending, Then the request still succeeds and excludes seeds.
	ts := newTestServer(t, 60)

	feedback := types.FeedbackRequest{
		DistinctID: "listener-1",
		Items: []types.FeedbackItem{
			{TrackID: "track-010", Action: "like"},
			{TrackID: "track-020", Action: "dislike"},
		},
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/feedback", feedback, nil); rec.Code != http.StatusOK {
		t.Fatalf("feedback setup failed: %d", rec.Code)
	}

	req := types.RecommendRequest{Seeds: []types.Seed{{ID: "track-003"}}, N: 5}
	rec := ts.do(t, http.MethodPost, "/api/v1/recommend", req,
		map[string]string{"X-User-Id": "listener-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[types.RecommendResponse](t, rec)
	if len(resp.Recommendations) == 0 {
		t.Fatal("expected recommendations")
	}
}

func TestFeedback(t *testing.T) {
	ts := newTestServer(t, 20)

	req := types.FeedbackRequest{
		DistinctID: "listener-9",
		Items: []types.FeedbackItem{
			{TrackID: "track-001", Action: "like"},
			{TrackID: "track-002", Action: "skip"},
		},
	}
	rec := ts.do(t, http.MethodPost, "/api/v1/feedback", req, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[types.FeedbackResponse](t, rec)
	if resp.Accepted != 2 || resp.Rejected != 0 {
		t.Errorf("expected 2 accepted, got %+v", resp)
	}

	liked, err := ts.store.InteractionTrackIDs(context.Background(), "listener-9", types.ActionLike, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(liked) != 1 || liked[0] != "track-001" {
		t.Errorf("expected stored like for track-001, got %v", liked)
	}
}

func TestFeedbackValidationFailure(t *testing.T) {
	ts := newTestServer(t, 20)

	req := types.FeedbackRequest{Items: []types.FeedbackItem{{TrackID: "t", Action: "love"}}}
	rec := ts.do(t, http.MethodPost, "/api/v1/feedback", req, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestReloadRequiresAuth(t *testing.T) {
	ts := newTestServer(t, 20)

	rec := ts.do(t, http.MethodPost, "/api/v1/reload", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/reload", nil,
		map[string]string{"Authorization": "Bearer wrong-key"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}
}

func TestReload(t *testing.T) {
	ts := newTestServer(t, 20)

	// Grow the catalog behind the engine's back, then reload.
	tracks := make([]types.Track, 30)
	for i := range tracks {
		tracks[i] = catalogTrack(i)
	}
	if err := ts.store.ReplaceTracks(context.Background(), tracks); err != nil {
		t.Fatal(err)
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/reload", nil,
		map[string]string{"Authorization": "Bearer " + testAPIKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[types.ReloadResponse](t, rec)
	if resp.TrackCount != 30 {
		t.Errorf("expected 30 tracks after reload, got %d", resp.TrackCount)
	}
}

func TestReloadEmptyCatalogIs503(t *testing.T) {
	ts := newTestServer(t, 0)

	rec := ts.do(t, http.MethodPost, "/api/v1/reload", nil,
		map[string]string{"Authorization": "Bearer " + testAPIKey})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for empty catalog, got %d", rec.Code)
	}
}
