package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/offtrack/offtrack/internal/types"
)

// stdFloor keeps z-scores defined for constant feature columns.
const stdFloor = 1e-9

// Snapshot is an immutable view of the track catalog prepared for
// recommendation: the L2-normalized feature matrix, cluster labels, the
// id→row index and per-dimension population statistics. It is built off to
// the side and published atomically; readers never observe a partial build.
type Snapshot struct {
	Tracks  []types.Track
	Matrix  [][]float64 // one unit vector per track, same row order as Tracks
	Clusters []int      // per-row label, or ClusterNone when support is disabled

	ClusterEnabled bool
	LoadedAt       time.Time

	FeatureMean [types.NumFeatures]float64
	FeatureStd  [types.NumFeatures]float64

	index          map[string]int
	mostPopularRow int
}

// buildSnapshot constructs a Snapshot from the loaded catalog.
// Cluster support is enabled only when clustering is requested and every row
// carries a non-negative label; a partial label set disables it entirely.
func buildSnapshot(tracks []types.Track, clustering bool) (*Snapshot, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrDataUnavailable)
	}

	snap := &Snapshot{
		Tracks:   tracks,
		Matrix:   make([][]float64, len(tracks)),
		Clusters: make([]int, len(tracks)),
		LoadedAt: time.Now().UTC(),
		index:    make(map[string]int, len(tracks)),
	}

	clusterComplete := clustering
	var sums, sqSums [types.NumFeatures]float64

	mostPopular := 0
	for row, t := range tracks {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: row %d has no id", ErrDataUnavailable, row)
		}
		if _, dup := snap.index[t.ID]; !dup {
			snap.index[t.ID] = row
		}

		raw := t.Features.Vector()
		for i, x := range raw {
			sums[i] += x
			sqSums[i] += x * x
		}
		snap.Matrix[row] = normalize(raw)

		if t.Cluster < 0 {
			clusterComplete = false
		}
		snap.Clusters[row] = t.Cluster

		if t.Popularity > tracks[mostPopular].Popularity {
			mostPopular = row
		}
	}
	snap.mostPopularRow = mostPopular

	snap.ClusterEnabled = clusterComplete
	if !clusterComplete {
		for row := range snap.Clusters {
			snap.Clusters[row] = types.ClusterNone
		}
	}

	n := float64(len(tracks))
	for i := 0; i < types.NumFeatures; i++ {
		mean := sums[i] / n
		variance := sqSums[i]/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		std := math.Sqrt(variance)
		if std < stdFloor {
			std = stdFloor
		}
		snap.FeatureMean[i] = mean
		snap.FeatureStd[i] = std
	}

	return snap, nil
}

// RowForID returns the matrix row for a track id.
func (s *Snapshot) RowForID(id string) (int, bool) {
	row, ok := s.index[id]
	return row, ok
}

// MostPopularRow returns the row of the single most popular track.
// Used as the synthetic seed when no caller seed resolves.
func (s *Snapshot) MostPopularRow() int {
	return s.mostPopularRow
}

// rowsForIDs maps track ids to matrix rows, dropping unknown ids and
// duplicates while preserving first-occurrence order.
func (s *Snapshot) rowsForIDs(ids []string) []int {
	var rows []int
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		row, ok := s.index[id]
		if !ok || seen[row] {
			continue
		}
		seen[row] = true
		rows = append(rows, row)
	}
	return rows
}
