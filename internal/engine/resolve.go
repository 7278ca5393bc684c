package engine

import (
	"strings"

	"github.com/offtrack/offtrack/internal/types"
)

// normString lowercases and trims a matching key.
func normString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// resolveSeeds maps caller seeds to matrix rows. Resolution order per seed:
// exact id match, then case-insensitive title substring match optionally
// narrowed by artist substring and exact year, with highest popularity as
// the tie-break. Unresolvable seeds are dropped. An empty resolution falls
// back to the single most popular track so the pipeline never runs on an
// empty seed set. Rows are de-duplicated preserving first-occurrence order.
func resolveSeeds(snap *Snapshot, seeds []types.Seed) []int {
	var rows []int
	seen := make(map[int]bool, len(seeds))

	for _, seed := range seeds {
		row, ok := resolveSeed(snap, seed)
		if !ok || seen[row] {
			continue
		}
		seen[row] = true
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		rows = []int{snap.MostPopularRow()}
	}
	return rows
}

func resolveSeed(snap *Snapshot, seed types.Seed) (int, bool) {
	if id := strings.TrimSpace(seed.ID); id != "" {
		if row, ok := snap.RowForID(id); ok {
			return row, true
		}
	}

	title := normString(seed.Title)
	if title == "" {
		return 0, false
	}
	artist := normString(seed.Artist)

	best := -1
	for row, t := range snap.Tracks {
		if !strings.Contains(normString(t.Title), title) {
			continue
		}
		if artist != "" && !strings.Contains(normString(t.Artist), artist) {
			continue
		}
		if seed.Year != 0 && t.Year != seed.Year {
			continue
		}
		if best < 0 || t.Popularity > snap.Tracks[best].Popularity {
			best = row
		}
	}

	if best < 0 {
		return 0, false
	}
	return best, true
}
