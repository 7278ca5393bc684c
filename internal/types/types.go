package types

import (
	"strings"
	"time"
)

// NumFeatures is the dimensionality of the audio feature space.
const NumFeatures = 9

// FeatureNames lists the audio descriptor dimensions in matrix column order.
var FeatureNames = [NumFeatures]string{
	"valence",
	"acousticness",
	"danceability",
	"energy",
	"instrumentalness",
	"liveness",
	"loudness",
	"speechiness",
	"tempo",
}

// AudioFeatures holds the raw continuous audio descriptors for one track.
type AudioFeatures struct {
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
}

// Vector returns the features in matrix column order.
func (f AudioFeatures) Vector() []float64 {
	return []float64{
		f.Valence,
		f.Acousticness,
		f.Danceability,
		f.Energy,
		f.Instrumentalness,
		f.Liveness,
		f.Loudness,
		f.Speechiness,
		f.Tempo,
	}
}

// ClusterNone is the sentinel cluster label meaning "no cluster constraint".
const ClusterNone = -1

// Track is an immutable catalog record. Identity is the ID; title, artist
// and year are used only for fuzzy seed matching.
type Track struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist"`
	Year       int           `json:"year"`
	Popularity int           `json:"popularity"`
	ImageURL   string        `json:"imageUrl,omitempty"`
	Features   AudioFeatures `json:"features"`
	Cluster    int           `json:"cluster"`
}

// Seed is a caller-supplied track descriptor used to anchor recommendations.
// Resolution prefers ID, then falls back to title/artist/year matching.
type Seed struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Year   int    `json:"year,omitempty"`
}

// Mode selects the popularity preference for recommendations.
type Mode string

const (
	ModeAll        Mode = "all"
	ModeIndie      Mode = "indie"
	ModeMainstream Mode = "mainstream"
)

// ParseMode normalizes a mode string. Unknown values fall back to ModeAll.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeIndie:
		return ModeIndie
	case ModeMainstream:
		return ModeMainstream
	default:
		return ModeAll
	}
}

// Recommendation is one scored, explained output record.
type Recommendation struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	Year       int      `json:"year"`
	Popularity int      `json:"popularity"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	Source     string   `json:"source"`
	Similarity float64  `json:"similarity"`
	Reasons    []string `json:"reasons,omitempty"`
}

// RecommendRequest is the wire request for POST /api/v1/recommend.
type RecommendRequest struct {
	Seeds       []Seed   `json:"seeds"`
	N           int      `json:"n"`
	Mode        string   `json:"mode"`
	LikedIDs    []string `json:"liked_ids,omitempty"`
	DislikedIDs []string `json:"disliked_ids,omitempty"`
	ExcludeIDs  []string `json:"exclude_ids,omitempty"`
}

// RecommendResponse is the wire response for POST /api/v1/recommend.
type RecommendResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// SearchResult is one track hit from catalog or Spotify search.
type SearchResult struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Year     int    `json:"year,omitempty"`
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	Source   string `json:"source"`
}

// SearchResponse is the wire response for GET /api/v1/search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// PingResponse reports liveness and engine readiness.
type PingResponse struct {
	OK          bool   `json:"ok"`
	EngineReady bool   `json:"engine_ready"`
	EngineError string `json:"engine_error,omitempty"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status     string     `json:"status"`
	Version    string     `json:"version"`
	TrackCount int        `json:"track_count"`
	Clustering bool       `json:"clustering"`
	LastLoad   *time.Time `json:"last_load,omitempty"`
}

// InteractionAction classifies implicit feedback on a track.
type InteractionAction string

const (
	ActionLike    InteractionAction = "like"
	ActionDislike InteractionAction = "dislike"
	ActionSkip    InteractionAction = "skip"
)

// ValidAction reports whether s is a known interaction action.
func ValidAction(s string) bool {
	switch InteractionAction(s) {
	case ActionLike, ActionDislike, ActionSkip:
		return true
	}
	return false
}

// Interaction is one recorded feedback event.
type Interaction struct {
	ID         string    `json:"id"`
	TrackID    string    `json:"track_id"`
	Action     string    `json:"action"`
	DistinctID string    `json:"distinct_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FeedbackItem is one feedback entry in a FeedbackRequest.
type FeedbackItem struct {
	TrackID string `json:"track_id"`
	Action  string `json:"action"`
}

// FeedbackRequest is the wire request for POST /api/v1/feedback.
type FeedbackRequest struct {
	DistinctID string         `json:"distinct_id,omitempty"`
	Items      []FeedbackItem `json:"items"`
}

// FeedbackResponse reports how many feedback items were stored.
type FeedbackResponse struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// ReloadResponse is the wire response for POST /api/v1/reload.
type ReloadResponse struct {
	TrackCount int   `json:"track_count"`
	ElapsedMS  int64 `json:"elapsed_ms"`
}
