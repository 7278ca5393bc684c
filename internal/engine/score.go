package engine

import (
	"sort"

	"github.com/offtrack/offtrack/internal/types"
)

// Popularity weight is a monotone function of normalized popularity,
// clamped so it can scale but never dominate similarity.
const (
	popWeightMin = 0.6
	popWeightMax = 1.4
)

// popularityWeight maps normalized popularity p in [0,1] to a score
// multiplier for the given mode.
func popularityWeight(mode types.Mode, p float64) float64 {
	var w float64
	switch mode {
	case types.ModeIndie:
		w = 1.15 - 0.55*p
	case types.ModeMainstream:
		w = 0.85 + 0.55*p
	default:
		w = 1.0
	}
	if w < popWeightMin {
		return popWeightMin
	}
	if w > popWeightMax {
		return popWeightMax
	}
	return w
}

// scoredCandidate is one candidate with its final ranking score.
type scoredCandidate struct {
	row   int
	score float64
}

// scoreCandidates computes the final score per candidate: similarity to the
// blended query times the mode's popularity weight, adjusted by liked and
// disliked feedback centroids when present. The base similarity is never
// mutated, so the no-feedback path is unaffected by feedback state.
// Candidates come back sorted best first, truncated to ScorePool.
func scoreCandidates(snap *Snapshot, p Params, mode types.Mode, cands []int, simsQ []float64, likedRows, dislikedRows []int) []scoredCandidate {
	scored := make([]scoredCandidate, len(cands))
	for i, row := range cands {
		pop := float64(snap.Tracks[row].Popularity) / 100.0
		if pop < 0 {
			pop = 0
		} else if pop > 1 {
			pop = 1
		}
		scored[i] = scoredCandidate{
			row:   row,
			score: simsQ[row] * popularityWeight(mode, pop),
		}
	}

	if len(likedRows) > 0 {
		centroid := normalize(meanVector(snap.Matrix, likedRows))
		clusters := clusterSet(snap, likedRows)
		for i := range scored {
			row := scored[i].row
			scored[i].score += p.LikeBoost * dot(snap.Matrix[row], centroid)
			if snap.ClusterEnabled && clusters[snap.Clusters[row]] {
				scored[i].score += p.LikeClusterBoost
			}
		}
	}

	if len(dislikedRows) > 0 {
		centroid := normalize(meanVector(snap.Matrix, dislikedRows))
		clusters := clusterSet(snap, dislikedRows)
		for i := range scored {
			row := scored[i].row
			scored[i].score -= p.DislikePenalty * dot(snap.Matrix[row], centroid)
			if snap.ClusterEnabled && clusters[snap.Clusters[row]] {
				scored[i].score -= p.DislikeClusterPenalty
			}
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].row < scored[j].row
	})

	if len(scored) > p.ScorePool {
		scored = scored[:p.ScorePool]
	}
	return scored
}

// clusterSet collects the cluster labels of the given rows.
func clusterSet(snap *Snapshot, rows []int) map[int]bool {
	if !snap.ClusterEnabled {
		return nil
	}
	set := make(map[int]bool, len(rows))
	for _, row := range rows {
		set[snap.Clusters[row]] = true
	}
	return set
}
