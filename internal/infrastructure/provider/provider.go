package provider

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/matchpulse/scoring-core/internal/domain/event"
)

var (
	// ErrTransient marks network-level and 5xx-equivalent failures. These
	// are retried with backoff before the gateway fails over.
	ErrTransient = errors.New("transient provider failure")

	// ErrAuthOrQuota marks authorization and quota failures. Never retried;
	// the gateway fails over to the next provider immediately.
	ErrAuthOrQuota = errors.New("provider auth or quota failure")

	// ErrMalformedPayload marks a single undecodable upstream occurrence.
	// The event is dropped and logged; the stream continues.
	ErrMalformedPayload = errors.New("malformed upstream payload")
)

// Health is a provider's self-reported condition, sampled by the gateway's
// periodic health cycle. Quota fields are -1 when the upstream does not
// report them.
type Health struct {
	Healthy        bool
	QuotaRemaining int
	QuotaLimit     int
}

// ScheduledMatch is an upcoming fixture from a provider's schedule feed.
type ScheduledMatch struct {
	ExternalMatchID string
	MatchID         string
	SportID         string
	HomeTeamID      string
	AwayTeamID      string
	TournamentPhase string
	KickoffAt       time.Time
}

// Adapter translates one upstream feed into the canonical event model.
// Implementations must derive stable event ids from upstream identity (or
// content hashes) so re-delivered occurrences are recognizable duplicates.
type Adapter interface {
	ProviderID() string
	FetchSchedule(ctx context.Context, sportID string) ([]ScheduledMatch, error)

	// StreamEvents returns a lazy, unbounded ordered sequence of canonical
	// events for one match. Both channels close when ctx is cancelled; a
	// terminal delivery on the error channel ends the stream.
	StreamEvents(ctx context.Context, sportID, externalMatchID string) (<-chan event.MatchEvent, <-chan error, error)

	CheckHealth(ctx context.Context) (Health, error)
}

// Classify maps an HTTP-level status to the failure taxonomy.
func Classify(statusCode int) error {
	switch {
	case statusCode == 401 || statusCode == 403 || statusCode == 429:
		return ErrAuthOrQuota
	case statusCode >= 500:
		return ErrTransient
	case statusCode == 408:
		return ErrTransient
	default:
		return nil
	}
}
