package scoring

import "context"

// Repository persists derived score facts. Facts are append/replace only;
// the event log stays the sole source of truth and the repository contents
// can always be regenerated from it.
type Repository interface {
	AppendScoreUpdate(ctx context.Context, update PlayerScoreUpdate) error
	ListScoreUpdatesByMatch(ctx context.Context, matchID string) ([]PlayerScoreUpdate, error)

	// ReplaceBonusesByMatch atomically supersedes the whole bonus set for a
	// match. Re-evaluation after a compensating correction replaces, never
	// duplicates.
	ReplaceBonusesByMatch(ctx context.Context, matchID string, bonuses []Bonus) error
	ListBonusesByMatch(ctx context.Context, matchID string) ([]Bonus, error)
}
