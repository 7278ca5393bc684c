package engine

// retrieve builds the bounded candidate pool for a query. The pool is the
// union of the blended query's top QueryPool neighbors and, for the first
// SeedFanout seeds, each seed's own top SeedPool neighbors; the per-seed
// retrieval keeps individual seed character that the blended vector would
// wash out. Resolved seeds and excluded ids never appear in the pool.
//
// Returns the candidate rows (first-occurrence order) and the similarity of
// every matrix row to the blended query, indexed by row.
func retrieve(snap *Snapshot, p Params, query []float64, seedRows []int, excludeIDs []string) ([]int, []float64) {
	simsQ := make([]float64, len(snap.Matrix))
	for row, vec := range snap.Matrix {
		simsQ[row] = dot(query, vec)
	}

	blocked := make(map[int]bool, len(seedRows)+len(excludeIDs))
	for _, row := range seedRows {
		blocked[row] = true
	}
	for _, id := range excludeIDs {
		if row, ok := snap.RowForID(id); ok {
			blocked[row] = true
		}
	}

	var cands []int
	inPool := make(map[int]bool)
	add := func(rows []int) {
		for _, row := range rows {
			if blocked[row] || inPool[row] {
				continue
			}
			inPool[row] = true
			cands = append(cands, row)
		}
	}

	add(topRows(simsQ, p.QueryPool))

	fanout := p.SeedFanout
	if fanout > len(seedRows) {
		fanout = len(seedRows)
	}
	if len(seedRows) > 1 {
		seedSims := make([]float64, len(snap.Matrix))
		for _, seedRow := range seedRows[:fanout] {
			seedVec := snap.Matrix[seedRow]
			for row, vec := range snap.Matrix {
				seedSims[row] = dot(seedVec, vec)
			}
			add(topRows(seedSims, p.SeedPool))
		}
	}

	return cands, simsQ
}
