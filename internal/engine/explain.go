package engine

import (
	"math"
	"sort"

	"github.com/offtrack/offtrack/internal/types"
)

// featurePhrases maps each feature dimension to a human-readable phrase for
// unusually high and unusually low values relative to the population.
var featurePhrases = [types.NumFeatures]struct{ high, low string }{
	{high: "happier mood", low: "moodier tone"},          // valence
	{high: "more acoustic", low: "less acoustic"},        // acousticness
	{high: "more danceable", low: "less danceable"},      // danceability
	{high: "higher energy", low: "lower energy"},         // energy
	{high: "more instrumental", low: "more vocal"},       // instrumentalness
	{high: "more live-sounding", low: "more studio"},     // liveness
	{high: "louder mix", low: "quieter mix"},             // loudness
	{high: "more spoken-word", low: "less spoken-word"},  // speechiness
	{high: "faster tempo", low: "slower tempo"},          // tempo
}

// explain generates up to three de-duplicated reason strings for a
// recommendation, in priority order: shared cluster with a seed, exact
// artist match with a seed, then the two most unusual feature dimensions by
// absolute z-score. Advisory text only; never affects ranking.
func explain(snap *Snapshot, row int, seedRows []int) []string {
	var reasons []string
	seen := make(map[string]bool, 3)
	add := func(r string) {
		if r == "" || seen[r] {
			return
		}
		seen[r] = true
		reasons = append(reasons, r)
	}

	if snap.ClusterEnabled {
		for _, seedRow := range seedRows {
			if snap.Clusters[seedRow] == snap.Clusters[row] {
				add("same vibe cluster as seed")
				break
			}
		}
	}

	artist := normString(snap.Tracks[row].Artist)
	if artist != "" {
		for _, seedRow := range seedRows {
			if normString(snap.Tracks[seedRow].Artist) == artist {
				add("same artist as a seed")
				break
			}
		}
	}

	raw := snap.Tracks[row].Features.Vector()
	type dimScore struct {
		dim int
		z   float64
	}
	dims := make([]dimScore, types.NumFeatures)
	for i, x := range raw {
		dims[i] = dimScore{dim: i, z: (x - snap.FeatureMean[i]) / snap.FeatureStd[i]}
	}
	sort.Slice(dims, func(i, j int) bool {
		ai, aj := math.Abs(dims[i].z), math.Abs(dims[j].z)
		if ai != aj {
			return ai > aj
		}
		return dims[i].dim < dims[j].dim
	})

	for _, d := range dims[:2] {
		if len(reasons) >= 3 {
			break
		}
		phrase := featurePhrases[d.dim]
		if d.z >= 0 {
			add(phrase.high)
		} else {
			add(phrase.low)
		}
	}

	if len(reasons) > 3 {
		reasons = reasons[:3]
	}
	return reasons
}
