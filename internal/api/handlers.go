package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/offtrack/offtrack/internal/analytics"
	"github.com/offtrack/offtrack/internal/engine"
	"github.com/offtrack/offtrack/internal/spotify"
	"github.com/offtrack/offtrack/internal/store"
	"github.com/offtrack/offtrack/internal/types"
	"github.com/offtrack/offtrack/internal/validation"
)

const (
	// minQueryRunes is the shortest search query worth running.
	minQueryRunes = 2
	// defaultSearchLimit caps search results when the caller does not.
	defaultSearchLimit = 8
	maxSearchLimit     = 50
	// feedbackHistoryLimit bounds how much stored feedback personalizes
	// a recommendation request.
	feedbackHistoryLimit = 50
)

// Handler implements the API handlers
type Handler struct {
	store     store.Store
	engine    *engine.Engine
	spotify   *spotify.Client
	analytics *analytics.Client
	apiKey    string
	version   string

	mu      sync.Mutex
	loadErr string
}

// NewHandler creates a new Handler.
func NewHandler(s store.Store, e *engine.Engine, sp *spotify.Client, an *analytics.Client, apiKey, version string) *Handler {
	return &Handler{
		store:     s,
		engine:    e,
		spotify:   sp,
		analytics: an,
		apiKey:    apiKey,
		version:   version,
	}
}

// RecordLoadError remembers the last snapshot load failure for ping
// reporting. Pass nil after a successful load.
func (h *Handler) RecordLoadError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		h.loadErr = ""
		return
	}
	h.loadErr = err.Error()
}

func (h *Handler) lastLoadError() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadErr
}

// Ping handles GET /api/v1/ping
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	resp := types.PingResponse{
		OK:          true,
		EngineReady: h.engine.Ready(),
		EngineError: h.lastLoadError(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:  "healthy",
		Version: h.version,
	}
	if snap := h.engine.Snapshot(); snap != nil {
		resp.TrackCount = len(snap.Tracks)
		resp.Clustering = snap.ClusterEnabled
		loaded := snap.LoadedAt
		resp.LastLoad = &loaded
	}
	writeJSON(w, http.StatusOK, resp)
}

// Search handles GET /api/v1/search. Spotify answers when configured,
// otherwise the local catalog does.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := parseLimit(r.URL.Query().Get("limit"))

	if utf8.RuneCountInString(q) < minQueryRunes {
		writeJSON(w, http.StatusOK, types.SearchResponse{Results: []types.SearchResult{}})
		return
	}

	results := h.spotify.Search(r.Context(), q, limit)
	if results == nil {
		tracks, err := h.store.SearchTracks(r.Context(), q, limit)
		if err != nil {
			slog.Error("catalog search failed", "error", err)
			MapEngineError(w, r, err)
			return
		}
		results = make([]types.SearchResult, 0, len(tracks))
		for _, t := range tracks {
			results = append(results, types.SearchResult{
				Title:    t.Title,
				Artist:   t.Artist,
				Year:     t.Year,
				ID:       t.ID,
				ImageURL: t.ImageURL,
				Source:   "db",
			})
		}
	}

	h.analytics.Capture(analytics.DistinctID(r), "search", map[string]any{
		"query_length": utf8.RuneCountInString(q),
		"results":      len(results),
	})
	writeJSON(w, http.StatusOK, types.SearchResponse{Results: results})
}

// Recommend handles POST /api/v1/recommend
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req types.RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateRecommend(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	distinctID := analytics.DistinctID(r)
	liked, disliked := h.feedbackHistory(r, req, distinctID)

	recs, err := h.engine.Recommend(r.Context(), engine.Request{
		Seeds:       req.Seeds,
		N:           req.N,
		Mode:        types.ParseMode(req.Mode),
		LikedIDs:    liked,
		DislikedIDs: disliked,
		ExcludeIDs:  req.ExcludeIDs,
	})
	if err != nil {
		slog.Error("recommend failed", "error", err)
		MapEngineError(w, r, err)
		return
	}

	for i := range recs {
		if recs[i].ImageURL == "" {
			recs[i].ImageURL = h.spotify.Cover(r.Context(), recs[i].Title, recs[i].Artist)
		}
	}

	h.analytics.Capture(distinctID, "recommend", map[string]any{
		"seeds":   len(req.Seeds),
		"mode":    string(types.ParseMode(req.Mode)),
		"results": len(recs),
	})
	writeJSON(w, http.StatusOK, types.RecommendResponse{Recommendations: recs})
}

// feedbackHistory merges explicit liked/disliked ids with stored feedback
// for the caller. Explicit lists win when provided.
func (h *Handler) feedbackHistory(r *http.Request, req types.RecommendRequest, distinctID string) (liked, disliked []string) {
	liked, disliked = req.LikedIDs, req.DislikedIDs
	if len(liked) > 0 || len(disliked) > 0 {
		return liked, disliked
	}

	var err error
	liked, err = h.store.InteractionTrackIDs(r.Context(), distinctID, types.ActionLike, feedbackHistoryLimit)
	if err != nil {
		slog.Debug("liked history lookup failed", "error", err)
		liked = nil
	}
	disliked, err = h.store.InteractionTrackIDs(r.Context(), distinctID, types.ActionDislike, feedbackHistoryLimit)
	if err != nil {
		slog.Debug("disliked history lookup failed", "error", err)
		disliked = nil
	}
	return liked, disliked
}

// Feedback handles POST /api/v1/feedback
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req types.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateFeedback(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	distinctID := req.DistinctID
	if distinctID == "" {
		distinctID = analytics.DistinctID(r)
	}

	now := time.Now().UTC()
	interactions := make([]types.Interaction, 0, len(req.Items))
	for _, item := range req.Items {
		interactions = append(interactions, types.Interaction{
			ID:         ulid.Make().String(),
			TrackID:    item.TrackID,
			Action:     item.Action,
			DistinctID: distinctID,
			CreatedAt:  now,
		})
	}

	accepted, err := h.store.RecordInteractions(r.Context(), interactions)
	if err != nil {
		slog.Error("feedback store failed", "error", err)
		MapEngineError(w, r, err)
		return
	}

	h.analytics.Capture(distinctID, "feedback", map[string]any{
		"items": accepted,
	})
	writeJSON(w, http.StatusOK, types.FeedbackResponse{
		Accepted: accepted,
		Rejected: len(req.Items) - accepted,
	})
}

// Reload handles POST /api/v1/reload
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := h.engine.Load(r.Context()); err != nil {
		h.RecordLoadError(err)
		slog.Error("snapshot reload failed", "error", err)
		MapEngineError(w, r, err)
		return
	}
	h.RecordLoadError(nil)

	count := 0
	if snap := h.engine.Snapshot(); snap != nil {
		count = len(snap.Tracks)
	}
	writeJSON(w, http.StatusOK, types.ReloadResponse{
		TrackCount: count,
		ElapsedMS:  time.Since(start).Milliseconds(),
	})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultSearchLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultSearchLimit
	}
	if n > maxSearchLimit {
		return maxSearchLimit
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
