// Package engine implements the recommendation core: seed resolution,
// vector-similarity candidate retrieval, popularity- and feedback-aware
// scoring, and diversified reranking with per-artist and per-cluster caps.
//
// The engine holds exactly one immutable Snapshot. Load builds a replacement
// snapshot off to the side and publishes it with a single atomic swap, so
// Recommend calls are safe to run concurrently with each other and with a
// reload; calls in flight during a reload complete against the old snapshot.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/offtrack/offtrack/internal/types"
)

var (
	// ErrDataUnavailable indicates the track catalog is missing or empty.
	// Fatal to Load; never retried internally.
	ErrDataUnavailable = errors.New("track data unavailable")

	// ErrNotLoaded indicates Recommend was called before a successful Load.
	ErrNotLoaded = errors.New("engine not loaded")
)

// Params are the tunable knobs of the recommendation pipeline.
type Params struct {
	// QueryPool is the number of nearest neighbors retrieved for the
	// blended seed query vector.
	QueryPool int `yaml:"query_pool"`

	// SeedPool is the number of nearest neighbors retrieved per individual
	// seed, preserving per-seed character in multi-seed queries.
	SeedPool int `yaml:"seed_pool"`

	// SeedFanout bounds how many resolved seeds get individual neighbor
	// retrieval.
	SeedFanout int `yaml:"seed_fanout"`

	// ScorePool bounds how many scored candidates reach the reranker.
	ScorePool int `yaml:"score_pool"`

	// MMRLambda balances quality against redundancy in greedy selection.
	MMRLambda float64 `yaml:"mmr_lambda"`

	// ArtistCap and ClusterCap are hard per-category limits on one result set.
	ArtistCap  int `yaml:"artist_cap"`
	ClusterCap int `yaml:"cluster_cap"`

	// MaxResults clamps the caller-requested result count;
	// DefaultResults applies when the caller passes n <= 0.
	MaxResults     int `yaml:"max_results"`
	DefaultResults int `yaml:"default_results"`

	// Feedback coefficients. Dislikes suppress harder than likes promote:
	// avoiding bad recommendations matters more than chasing exact taste.
	LikeBoost             float64 `yaml:"like_boost"`
	LikeClusterBoost      float64 `yaml:"like_cluster_boost"`
	DislikePenalty        float64 `yaml:"dislike_penalty"`
	DislikeClusterPenalty float64 `yaml:"dislike_cluster_penalty"`

	// Clustering enables cluster support when the catalog carries a full
	// label set.
	Clustering bool `yaml:"clustering"`
}

// DefaultParams returns the reference pipeline constants.
func DefaultParams() Params {
	return Params{
		QueryPool:             2500,
		SeedPool:              1200,
		SeedFanout:            5,
		ScorePool:             2500,
		MMRLambda:             0.72,
		ArtistCap:             2,
		ClusterCap:            3,
		MaxResults:            100,
		DefaultResults:        10,
		LikeBoost:             0.20,
		LikeClusterBoost:      0.05,
		DislikePenalty:        0.35,
		DislikeClusterPenalty: 0.07,
		Clustering:            true,
	}
}

// Loader supplies the track catalog for snapshot builds.
// Implemented by store.SQLiteStore.
type Loader interface {
	ListTracks(ctx context.Context) ([]types.Track, error)
}

// Request carries one recommendation query.
type Request struct {
	Seeds       []types.Seed
	N           int
	Mode        types.Mode
	LikedIDs    []string
	DislikedIDs []string
	ExcludeIDs  []string
}

// Engine is the recommendation engine. One instance per process; all state
// lives in the atomically-published snapshot.
type Engine struct {
	loader Loader
	params Params
	snap   atomic.Pointer[Snapshot]
}

// New creates an engine over the given loader. Call Load before Recommend.
func New(loader Loader, params Params) *Engine {
	return &Engine{loader: loader, params: params}
}

// Load (re)builds the snapshot from the current track catalog and publishes
// it atomically. On failure the previous snapshot, if any, stays live.
func (e *Engine) Load(ctx context.Context) error {
	start := time.Now()

	tracks, err := e.loader.ListTracks(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	snap, err := buildSnapshot(tracks, e.params.Clustering)
	if err != nil {
		return err
	}

	e.snap.Store(snap)
	slog.Info("snapshot loaded",
		"component", "engine",
		"tracks", len(snap.Tracks),
		"clustering", snap.ClusterEnabled,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Ready reports whether a snapshot has been published.
func (e *Engine) Ready() bool {
	return e.snap.Load() != nil
}

// Snapshot returns the live snapshot, or nil before the first Load.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// Recommend returns up to req.N diversified recommendations for the given
// seeds. It is a pure read over the current snapshot: an unresolvable seed
// set degrades to the most-popular-track fallback, and an empty candidate
// pool degrades to an empty result list. Neither is an error.
func (e *Engine) Recommend(ctx context.Context, req Request) ([]types.Recommendation, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}

	n := req.N
	if n <= 0 {
		n = e.params.DefaultResults
	}
	if n > e.params.MaxResults {
		n = e.params.MaxResults
	}

	seedRows := resolveSeeds(snap, req.Seeds)

	query := normalize(meanVector(snap.Matrix, seedRows))
	cands, simsQ := retrieve(snap, e.params, query, seedRows, req.ExcludeIDs)
	if len(cands) == 0 {
		return []types.Recommendation{}, nil
	}

	scored := scoreCandidates(snap, e.params, req.Mode, cands, simsQ,
		snap.rowsForIDs(req.LikedIDs), snap.rowsForIDs(req.DislikedIDs))

	picked := mmrSelect(snap, e.params, scored, n)

	recs := make([]types.Recommendation, 0, len(picked))
	for _, row := range picked {
		t := snap.Tracks[row]
		recs = append(recs, types.Recommendation{
			ID:         t.ID,
			Title:      t.Title,
			Artist:     t.Artist,
			Year:       t.Year,
			Popularity: t.Popularity,
			ImageURL:   t.ImageURL,
			Source:     "db",
			Similarity: simsQ[row],
			Reasons:    explain(snap, row, seedRows),
		})
	}

	return recs, nil
}
