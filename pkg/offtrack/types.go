package offtrack

import "time"

// Seed describes a track anchoring a recommendation request. ID wins when
// set; otherwise title, artist and year narrow a fuzzy match.
type Seed struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Year   int    `json:"year,omitempty"`
}

// RecommendRequest asks for up to N recommendations anchored on Seeds.
type RecommendRequest struct {
	Seeds       []Seed   `json:"seeds"`
	N           int      `json:"n"`
	Mode        string   `json:"mode,omitempty"`
	LikedIDs    []string `json:"liked_ids,omitempty"`
	DislikedIDs []string `json:"disliked_ids,omitempty"`
	ExcludeIDs  []string `json:"exclude_ids,omitempty"`
}

// Recommendation is one scored result.
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

type recommendResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// SearchResult is one track hit.
type SearchResult struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Year     int    `json:"year,omitempty"`
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	Source   string `json:"source"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// PingResponse reports liveness and engine readiness.
type PingResponse struct {
	OK          bool   `json:"ok"`
	EngineReady bool   `json:"engine_ready"`
	EngineError string `json:"engine_error,omitempty"`
}

// HealthResponse reports server health.
type HealthResponse struct {
	Status     string     `json:"status"`
	Version    string     `json:"version"`
	TrackCount int        `json:"track_count"`
	Clustering bool       `json:"clustering"`
	LastLoad   *time.Time `json:"last_load,omitempty"`
}

// FeedbackItem is one like/dislike/skip event.
type FeedbackItem struct {
	TrackID string `json:"track_id"`
	Action  string `json:"action"`
}

type feedbackRequest struct {
	DistinctID string         `json:"distinct_id,omitempty"`
	Items      []FeedbackItem `json:"items"`
}

// FeedbackResponse reports how many events were stored.
type FeedbackResponse struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// ReloadResponse reports a snapshot rebuild.
type ReloadResponse struct {
	TrackCount int   `json:"track_count"`
	ElapsedMS  int64 `json:"elapsed_ms"`
}
