package projection

import "time"

// Status is a match's lifecycle phase as seen by read models.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusFinished  Status = "finished"
)

// PlayerTally is the denormalized per-player view inside MatchState.
type PlayerTally struct {
	PlayerID    string         `json:"player_id"`
	TeamID      string         `json:"team_id,omitempty"`
	EventCounts map[string]int `json:"event_counts,omitempty"`
	LivePoints  int            `json:"live_points"`
	BonusPoints int            `json:"bonus_points"`
	TotalPoints int            `json:"total_points"`
}

// MatchState is the primary read model: the denormalized current state of
// one match. Created on the first event, updated on every subsequent
// event or score fact, frozen once the match finished and bonuses were
// applied. It may be discarded and rebuilt from the stream at any time.
type MatchState struct {
	MatchID         string                 `json:"match_id"`
	SportID         string                 `json:"sport_id,omitempty"`
	Status          Status                 `json:"status"`
	ScoreByTeam     map[string]int         `json:"score_by_team,omitempty"`
	Players         map[string]PlayerTally `json:"players,omitempty"`
	Version         int64                  `json:"version"`
	StartedAt       time.Time              `json:"started_at"`
	FinishedAt      time.Time              `json:"finished_at"`
	BonusesApplied  bool                   `json:"bonuses_applied"`
	AppliedEventIDs map[string]bool        `json:"applied_event_ids,omitempty"`
	AppliedFactIDs  map[string]bool        `json:"applied_fact_ids,omitempty"`
}

// Frozen reports whether the state accepts no further mutation.
func (s MatchState) Frozen() bool {
	return s.Status == StatusFinished && s.BonusesApplied
}

// TeamScore is an independent, narrower read model over the same stream:
// per-team score and event volume for one match.
type TeamScore struct {
	MatchID         string          `json:"match_id"`
	ScoreByTeam     map[string]int  `json:"score_by_team,omitempty"`
	EventsByTeam    map[string]int  `json:"events_by_team,omitempty"`
	Version         int64           `json:"version"`
	AppliedEventIDs map[string]bool `json:"applied_event_ids,omitempty"`
}
