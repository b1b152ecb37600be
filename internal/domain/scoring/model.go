package scoring

import (
	"time"

	"github.com/matchpulse/scoring-core/internal/domain/event"
)

// PlayerScoreUpdate is a derived fact: the points a single triggering event
// or bonus award added for one player, plus the running total at that point
// in the stream. Updates are never retracted; compensating events produce
// later updates with corrected totals.
type PlayerScoreUpdate struct {
	UpdateID            string     `json:"update_id"`
	PlayerID            string     `json:"player_id"`
	MatchID             string     `json:"match_id"`
	PointsAdded         int        `json:"points_added"`
	TotalPoints         int        `json:"total_points"`
	TriggeringEventID   string     `json:"triggering_event_id"`
	TriggeringEventType event.Type `json:"triggering_event_type"`
	IsBonus             bool       `json:"is_bonus"`
	EmittedAt           time.Time  `json:"emitted_at"`
}

// Bonus is the award produced by one post-match rule for one player.
type Bonus struct {
	RuleID      string `json:"rule_id"`
	PlayerID    string `json:"player_id"`
	MatchID     string `json:"match_id"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}

// UpdateID derives the deterministic fact id for this award so a
// re-evaluation that produces the same award folds as a no-op.
func (b Bonus) UpdateID() string {
	return "bn-" + b.MatchID + "-" + b.RuleID + "-" + b.PlayerID
}

// AsScoreUpdate converts the award into the fact form consumed by
// projections and stream subscribers.
func (b Bonus) AsScoreUpdate(total int, at time.Time) PlayerScoreUpdate {
	return PlayerScoreUpdate{
		UpdateID:    b.UpdateID(),
		PlayerID:    b.PlayerID,
		MatchID:     b.MatchID,
		PointsAdded: b.Points,
		TotalPoints: total,
		IsBonus:     true,
		EmittedAt:   at,
	}
}

// MatchOutcome is a team's result within one match.
type MatchOutcome string

const (
	OutcomeWin  MatchOutcome = "win"
	OutcomeLoss MatchOutcome = "loss"
	OutcomeDraw MatchOutcome = "draw"
)

// PlayerMatchContext aggregates one player's events for a finished match.
// EventCounts is keyed by event type; Stats carries sport-specific numeric
// aggregates derived from event metadata.
type PlayerMatchContext struct {
	PlayerID    string
	TeamID      string
	MatchID     string
	SportID     string
	EventCounts map[event.Type]int
	Stats       map[string]int
	LivePoints  int
}

// Count returns the player's tally for an event type.
func (c PlayerMatchContext) Count(t event.Type) int {
	return c.EventCounts[t]
}

// MatchContext is the full-match outcome post-match rules evaluate against.
type MatchContext struct {
	MatchID         string
	SportID         string
	ScoreByTeam     map[string]int
	OutcomeByTeam   map[string]MatchOutcome
	TournamentPhase string
	FinishedAt      time.Time
}

// TeamWon reports whether the given team won the match.
func (c MatchContext) TeamWon(teamID string) bool {
	return c.OutcomeByTeam[teamID] == OutcomeWin
}
