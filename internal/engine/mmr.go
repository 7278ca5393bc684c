package engine

// mmrSelect greedily picks up to n candidates by maximal marginal relevance:
// mmr(i) = λ·score(i) − (1−λ)·max similarity of i to anything already
// selected (0 for the first pick). Artist and cluster caps are hard
// constraints: a capped category's remaining members become ineligible.
// Fewer than n picks is a valid outcome.
//
// The max-similarity-to-selected term is maintained incrementally per
// remaining candidate, keeping each round a single O(candidates) pass.
func mmrSelect(snap *Snapshot, p Params, cands []scoredCandidate, n int) []int {
	if n <= 0 || len(cands) == 0 {
		return nil
	}

	lambda := p.MMRLambda
	used := make([]bool, len(cands))
	maxSim := make([]float64, len(cands))
	artistCount := make(map[string]int)
	clusterCount := make(map[int]int)

	eligible := func(i int) bool {
		if used[i] {
			return false
		}
		row := cands[i].row
		if p.ArtistCap > 0 && artistCount[normString(snap.Tracks[row].Artist)] >= p.ArtistCap {
			return false
		}
		if p.ClusterCap > 0 && snap.ClusterEnabled {
			if clusterCount[snap.Clusters[row]] >= p.ClusterCap {
				return false
			}
		}
		return true
	}

	var picked []int
	for len(picked) < n {
		best := -1
		bestMMR := 0.0
		for i := range cands {
			if !eligible(i) {
				continue
			}
			mmr := lambda*cands[i].score - (1-lambda)*maxSim[i]
			if best < 0 || mmr > bestMMR {
				best = i
				bestMMR = mmr
			}
		}
		if best < 0 {
			break
		}

		used[best] = true
		row := cands[best].row
		picked = append(picked, row)
		artistCount[normString(snap.Tracks[row].Artist)]++
		if snap.ClusterEnabled {
			clusterCount[snap.Clusters[row]]++
		}

		pickedVec := snap.Matrix[row]
		for i := range cands {
			if used[i] {
				continue
			}
			if sim := dot(snap.Matrix[cands[i].row], pickedVec); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	return picked
}
