package store

import (
	"context"

	"github.com/offtrack/offtrack/internal/types"
)

// Store defines the interface contract for track catalog and feedback storage.
type Store interface {
	// ListTracks returns the full catalog in stable insertion order.
	// The engine's matrix row order is defined by this ordering.
	ListTracks(ctx context.Context) ([]types.Track, error)

	// SearchTracks returns tracks whose title or artist contains q
	// (case-insensitive), most popular first.
	SearchTracks(ctx context.Context, q string, limit int) ([]types.Track, error)

	// CountTracks returns the number of catalog rows.
	CountTracks(ctx context.Context) (int, error)

	// ReplaceTracks atomically replaces the whole catalog. Existing
	// interactions are cleared along with the tracks they reference.
	ReplaceTracks(ctx context.Context, tracks []types.Track) error

	// RecordInteractions persists feedback events. Returns the number stored.
	RecordInteractions(ctx context.Context, interactions []types.Interaction) (int, error)

	// InteractionTrackIDs returns the most recent distinct track IDs a user
	// performed the given action on, newest first.
	InteractionTrackIDs(ctx context.Context, distinctID string, action types.InteractionAction, limit int) ([]string, error)

	Close() error
}
