package event

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrVersionConflict is returned by Append when another writer appended
	// between the caller's read and write. The caller re-reads and retries,
	// it never overwrites.
	ErrVersionConflict = errors.New("stream version conflict")

	// ErrDuplicateEvent is returned by Append when the event id already
	// exists in the stream.
	ErrDuplicateEvent = errors.New("duplicate event id")
)

// Log is the append-only, per-match ordered system of record. Total order
// within one match stream is the source of truth; no cross-match ordering
// exists. The stream length is the optimistic-concurrency token.
type Log interface {
	// Append writes one event at position expectedVersion+1 and returns the
	// new stream version. ErrVersionConflict when expectedVersion is stale.
	Append(ctx context.Context, matchID string, ev MatchEvent, expectedVersion int64) (int64, error)

	// ReadFrom returns the ordered events of a stream starting after
	// fromVersion (0 reads the whole stream).
	ReadFrom(ctx context.Context, matchID string, fromVersion int64) ([]MatchEvent, error)

	// Version returns the current stream length, 0 for an unknown match.
	Version(ctx context.Context, matchID string) (int64, error)

	// Subscribe delivers the historical events of the stream followed by
	// live appends, in order, until ctx is cancelled or the returned cancel
	// func is called. The channel is closed on cancellation.
	Subscribe(ctx context.Context, matchID string) (<-chan MatchEvent, func(), error)
}
