package projection

import "context"

// Store persists projection snapshots keyed by (projection name, match id).
// Snapshots are derived state: losing them is recoverable by rebuild.
type Store interface {
	Save(ctx context.Context, name, matchID string, state any) error

	// Load decodes the stored snapshot into target (a pointer to the
	// projection's state type) and reports whether one existed.
	Load(ctx context.Context, name, matchID string, target any) (bool, error)

	Delete(ctx context.Context, name, matchID string) error
}
