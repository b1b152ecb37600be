package rules

import (
	"time"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
)

// LiveRule scores a single event during a match. Rules are stateless values
// shared read-only across all concurrent evaluations; Predicate must not
// retain or mutate the event.
type LiveRule struct {
	RuleID      string     `validate:"required"`
	Description string     `validate:"required"`
	EventType   event.Type `validate:"required"`
	Points      int
	Predicate   func(event.MatchEvent) bool
}

// Matches reports whether the rule applies to the event. A nil predicate
// matches every event of the rule's type.
func (r LiveRule) Matches(ev event.MatchEvent) bool {
	if r.EventType != ev.Type {
		return false
	}
	if r.Predicate == nil {
		return true
	}
	return r.Predicate(ev)
}

// PostMatchRule awards a contextual bonus once the full match outcome is
// known. Rules are evaluated independently, highest Priority first, ties
// broken by RuleID ascending; a player may collect bonuses from several
// rules for the same match. Only a rule's own predicate encodes exclusivity.
type PostMatchRule struct {
	RuleID    string `validate:"required"`
	Priority  int
	Predicate func(scoring.PlayerMatchContext, scoring.MatchContext) bool `validate:"required"`
	Calculate func(scoring.PlayerMatchContext, scoring.MatchContext) scoring.Bonus
}

// Config is the full per-sport scoring configuration. Treated as immutable
// once registered.
type Config struct {
	SportID       string `validate:"required"`
	TrackedTypes  []event.Type
	RosterLimits  map[string]int
	LiveRules     []LiveRule
	PostMatch     []PostMatchRule
	MatchDuration time.Duration
}

func (c Config) tracked() map[event.Type]struct{} {
	out := make(map[event.Type]struct{}, len(c.TrackedTypes))
	for _, t := range c.TrackedTypes {
		out[t] = struct{}{}
	}
	return out
}

// Tracks reports whether events of the given type are relevant to this
// sport. Lifecycle and correction events are always tracked.
func (c Config) Tracks(t event.Type) bool {
	switch t {
	case event.TypeMatchStarted, event.TypeMatchEnded, event.TypeCorrection:
		return true
	}
	_, ok := c.tracked()[t]
	return ok
}

// LivePoints evaluates every live rule against the event and returns the
// summed points. Rules are additive: each matching rule contributes its
// points independently.
func (c Config) LivePoints(ev event.MatchEvent) int {
	total := 0
	for _, rule := range c.LiveRules {
		if rule.Matches(ev) {
			total += rule.Points
		}
	}
	return total
}
