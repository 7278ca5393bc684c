package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/offtrack/offtrack/internal/types"
	_ "modernc.org/sqlite"
)

const trackColumns = `id, name, artists, image_url, year, popularity,
	valence, acousticness, danceability, energy, instrumentalness,
	liveness, loudness, speechiness, tempo, cluster`

// SQLiteStore is the SQLite-backed track catalog and interaction log.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListTracks returns the full catalog ordered by rowid, which preserves the
// order rows were seeded in and defines the engine's matrix row order.
func (s *SQLiteStore) ListTracks(ctx context.Context) ([]types.Track, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []types.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, *track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}

	return tracks, nil
}

// SearchTracks performs a case-insensitive LIKE search on title and artist,
// most popular first.
func (s *SQLiteStore) SearchTracks(ctx context.Context, q string, limit int) ([]types.Track, error) {
	if limit <= 0 {
		limit = 8
	}
	pattern := "%" + q + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks
		 WHERE name LIKE ? COLLATE NOCASE OR artists LIKE ? COLLATE NOCASE
		 ORDER BY popularity DESC, rowid ASC
		 LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search tracks: %w", err)
	}
	defer rows.Close()

	var tracks []types.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, *track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}

	return tracks, nil
}

// CountTracks returns the number of catalog rows.
func (s *SQLiteStore) CountTracks(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracks").Scan(&count)
	return count, err
}

// ReplaceTracks atomically replaces the catalog in a single transaction.
// Interactions are cleared as well since they reference replaced rows.
func (s *SQLiteStore) ReplaceTracks(ctx context.Context, tracks []types.Track) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM interactions"); err != nil {
		return fmt.Errorf("clear interactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tracks"); err != nil {
		return fmt.Errorf("clear tracks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (`+trackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		f := t.Features
		_, err := stmt.ExecContext(ctx,
			t.ID, t.Title, t.Artist, t.ImageURL, t.Year, t.Popularity,
			f.Valence, f.Acousticness, f.Danceability, f.Energy,
			f.Instrumentalness, f.Liveness, f.Loudness, f.Speechiness,
			f.Tempo, t.Cluster)
		if err != nil {
			return fmt.Errorf("insert track %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// RecordInteractions persists feedback events.
func (s *SQLiteStore) RecordInteractions(ctx context.Context, interactions []types.Interaction) (int, error) {
	if len(interactions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO interactions (id, track_id, action, distinct_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, in := range interactions {
		_, err := stmt.ExecContext(ctx,
			in.ID, in.TrackID, in.Action, in.DistinctID,
			in.CreatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return 0, fmt.Errorf("insert interaction %s: %w", in.ID, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return stored, nil
}

// InteractionTrackIDs returns the most recent distinct track IDs a user
// performed the given action on, newest first.
func (s *SQLiteStore) InteractionTrackIDs(ctx context.Context, distinctID string, action types.InteractionAction, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT track_id FROM interactions
		WHERE distinct_id = ? AND action = ?
		GROUP BY track_id
		ORDER BY MAX(created_at) DESC
		LIMIT ?`, distinctID, string(action), limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}

	return ids, nil
}

// scanTrack scans a row into a Track, handling the nullable image column.
func scanTrack(scanner interface{ Scan(...any) error }) (*types.Track, error) {
	var track types.Track
	var imageURL sql.NullString

	err := scanner.Scan(
		&track.ID,
		&track.Title,
		&track.Artist,
		&imageURL,
		&track.Year,
		&track.Popularity,
		&track.Features.Valence,
		&track.Features.Acousticness,
		&track.Features.Danceability,
		&track.Features.Energy,
		&track.Features.Instrumentalness,
		&track.Features.Liveness,
		&track.Features.Loudness,
		&track.Features.Speechiness,
		&track.Features.Tempo,
		&track.Cluster,
	)
	if err != nil {
		return nil, err
	}

	if imageURL.Valid {
		track.ImageURL = imageURL.String
	}

	return &track, nil
}
