package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/offtrack/offtrack/internal/types"
	"github.com/oklog/ulid/v2"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTrack(i int) types.Track {
	return types.Track{
		ID:         fmt.Sprintf("track-%03d", i),
		Title:      fmt.Sprintf("Song %d", i),
		Artist:     fmt.Sprintf("Artist %d", i%4),
		Year:       2000 + i%20,
		Popularity: (i * 7) % 100,
		Features: types.AudioFeatures{
			Valence:      float64(i%10) / 10,
			Energy:       float64((i+3)%10) / 10,
			Danceability: 0.5,
			Tempo:        120,
		},
		Cluster: i % 3,
	}
}

func seedTracks(t *testing.T, s *SQLiteStore, n int) []types.Track {
	t.Helper()
	tracks := make([]types.Track, n)
	for i := range tracks {
		tracks[i] = testTrack(i)
	}
	if err := s.ReplaceTracks(context.Background(), tracks); err != nil {
		t.Fatal(err)
	}
	return tracks
}

func TestStore_NewSQLiteStore(t *testing.T) {
	newTestStore(t)
}

func TestStore_ListTracks_PreservesInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	want := seedTracks(t, s, 10)

	got, err := s.ListTracks(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d tracks, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("row %d: expected id %s, got %s", i, want[i].ID, got[i].ID)
		}
	}
}

func TestStore_ListTracks_RoundTripsFields(t *testing.T) {
	s := newTestStore(t)
	in := types.Track{
		ID:         "abc123",
		Title:      "Lonesome Road",
		Artist:     "The Drifters",
		Year:       1987,
		Popularity: 64,
		ImageURL:   "https://img.example/cover.jpg",
		Features: types.AudioFeatures{
			Valence: 0.42, Acousticness: 0.1, Danceability: 0.7,
			Energy: 0.9, Instrumentalness: 0.01, Liveness: 0.2,
			Loudness: -6.3, Speechiness: 0.05, Tempo: 131.2,
		},
		Cluster: 5,
	}
	if err := s.ReplaceTracks(context.Background(), []types.Track{in}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListTracks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 track, got %d", len(got))
	}
	if got[0] != in {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got[0], in)
	}
}

func TestStore_SearchTracks(t *testing.T) {
	s := newTestStore(t)
	tracks := []types.Track{
		{ID: "a", Title: "Blue Monday", Artist: "New Order", Popularity: 80},
		{ID: "b", Title: "Blue in Green", Artist: "Miles Davis", Popularity: 70},
		{ID: "c", Title: "Yellow", Artist: "Coldplay", Popularity: 90},
	}
	if err := s.ReplaceTracks(context.Background(), tracks); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		q       string
		wantIDs []string
	}{
		{name: "title substring, popularity order", q: "blue", wantIDs: []string{"a", "b"}},
		{name: "artist substring", q: "coldplay", wantIDs: []string{"c"}},
		{name: "case insensitive", q: "BLUE", wantIDs: []string{"a", "b"}},
		{name: "no match", q: "zzz", wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SearchTracks(context.Background(), tt.q, 8)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("expected %d results, got %d", len(tt.wantIDs), len(got))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("result %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestStore_SearchTracks_Limit(t *testing.T) {
	s := newTestStore(t)
	seedTracks(t, s, 20)

	got, err := s.SearchTracks(context.Background(), "song", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 results, got %d", len(got))
	}
}

func TestStore_ReplaceTracks_ClearsPreviousCatalog(t *testing.T) {
	s := newTestStore(t)
	seedTracks(t, s, 10)
	seedTracks(t, s, 3)

	count, err := s.CountTracks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 tracks after replace, got %d", count)
	}
}

func TestStore_RecordInteractions(t *testing.T) {
	s := newTestStore(t)
	seedTracks(t, s, 5)

	now := time.Now().UTC()
	interactions := []types.Interaction{
		{ID: ulid.Make().String(), TrackID: "track-000", Action: "like", DistinctID: "u1", CreatedAt: now},
		{ID: ulid.Make().String(), TrackID: "track-001", Action: "dislike", DistinctID: "u1", CreatedAt: now.Add(time.Second)},
		{ID: ulid.Make().String(), TrackID: "track-002", Action: "like", DistinctID: "u2", CreatedAt: now.Add(2 * time.Second)},
	}

	stored, err := s.RecordInteractions(context.Background(), interactions)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 3 {
		t.Errorf("expected 3 stored, got %d", stored)
	}
}

func TestStore_InteractionTrackIDs(t *testing.T) {
	s := newTestStore(t)
	seedTracks(t, s, 5)

	base := time.Now().UTC()
	interactions := []types.Interaction{
		{ID: ulid.Make().String(), TrackID: "track-000", Action: "like", DistinctID: "u1", CreatedAt: base},
		{ID: ulid.Make().String(), TrackID: "track-001", Action: "like", DistinctID: "u1", CreatedAt: base.Add(time.Second)},
		{ID: ulid.Make().String(), TrackID: "track-000", Action: "like", DistinctID: "u1", CreatedAt: base.Add(2 * time.Second)},
		{ID: ulid.Make().String(), TrackID: "track-002", Action: "dislike", DistinctID: "u1", CreatedAt: base.Add(3 * time.Second)},
		{ID: ulid.Make().String(), TrackID: "track-003", Action: "like", DistinctID: "u2", CreatedAt: base.Add(4 * time.Second)},
	}
	if _, err := s.RecordInteractions(context.Background(), interactions); err != nil {
		t.Fatal(err)
	}

	// Likes for u1: track-000 repeated, newest first, deduplicated
	got, err := s.InteractionTrackIDs(context.Background(), "u1", types.ActionLike, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"track-000", "track-001"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	// Dislikes are separate
	got, err = s.InteractionTrackIDs(context.Background(), "u1", types.ActionDislike, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "track-002" {
		t.Errorf("expected [track-002], got %v", got)
	}
}
