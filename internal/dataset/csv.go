package dataset

import (
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/offtrack/offtrack/internal/types"
)

const (
	minYear = 1900
	maxYear = 2035
)

// columnAliases maps legacy CSV header names onto canonical columns.
// Exported datasets have drifted over time; older dumps use title/artist
// and img instead of name/artists/image_url.
var columnAliases = map[string]string{
	"title":  "name",
	"artist": "artists",
	"img":    "image_url",
	"image":  "image_url",
}

// LoadCSV reads a track catalog CSV. Header names are matched
// case-insensitively with legacy aliases applied; missing numeric columns
// default to zero, missing ids derive from name, artists and year.
func LoadCSV(path string) ([]types.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]types.Track, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := columnAliases[key]; ok {
			key = canonical
		}
		cols[key] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("dataset has no name column")
	}

	var tracks []types.Track
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read dataset line %d: %w", line, err)
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		num := func(name string) float64 {
			v, err := strconv.ParseFloat(field(name), 64)
			if err != nil {
				return 0
			}
			return v
		}

		name := field("name")
		if name == "" {
			continue
		}
		artists := field("artists")
		year := clampYear(int(num("year")))

		id := field("id")
		if id == "" {
			id = stableID(name, artists, year)
		}

		cluster := types.ClusterNone
		if raw := field("cluster"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				cluster = v
			}
		}

		tracks = append(tracks, types.Track{
			ID:         id,
			Title:      name,
			Artist:     artists,
			Year:       year,
			Popularity: int(num("popularity")),
			ImageURL:   field("image_url"),
			Features: types.AudioFeatures{
				Valence:          num("valence"),
				Acousticness:     num("acousticness"),
				Danceability:     num("danceability"),
				Energy:           num("energy"),
				Instrumentalness: num("instrumentalness"),
				Liveness:         num("liveness"),
				Loudness:         num("loudness"),
				Speechiness:      num("speechiness"),
				Tempo:            num("tempo"),
			},
			Cluster: cluster,
		})
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("dataset contains no tracks")
	}
	return tracks, nil
}

// stableID derives a deterministic track id so reseeding the same dataset
// preserves identities referenced by stored feedback.
func stableID(name, artists string, year int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s||%s||%d", name, artists, year)))
	return hex.EncodeToString(sum[:])
}

func clampYear(year int) int {
	if year == 0 {
		return 0
	}
	if year < minYear {
		return minYear
	}
	if year > maxYear {
		return maxYear
	}
	return year
}
