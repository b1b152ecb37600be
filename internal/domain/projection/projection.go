package projection

import (
	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
)

// Projection is a pure fold over one match stream. Apply must be
// deterministic and idempotent under event re-delivery: replaying the full
// stream from scratch must produce state identical to incremental
// application. Implementations keep an applied-id set inside the state for
// that purpose, never inside the projection value itself.
type Projection interface {
	Name() string
	Init(matchID string) any
	Apply(state any, ev event.MatchEvent) any

	// ApplyScoreUpdate folds a stored score fact (live update or bonus)
	// into the state. Projections that ignore score facts return state
	// unchanged.
	ApplyScoreUpdate(state any, update scoring.PlayerScoreUpdate) any
}

// MatchStateProjection folds the stream into the denormalized MatchState
// view. Player points come exclusively from score-update facts so that
// incremental application and rebuild observe the exact same inputs.
type MatchStateProjection struct{}

const MatchStateName = "match_state"

func (MatchStateProjection) Name() string { return MatchStateName }

func (MatchStateProjection) Init(matchID string) any {
	return MatchState{
		MatchID:         matchID,
		Status:          StatusScheduled,
		ScoreByTeam:     map[string]int{},
		Players:         map[string]PlayerTally{},
		AppliedEventIDs: map[string]bool{},
		AppliedFactIDs:  map[string]bool{},
	}
}

func (MatchStateProjection) Apply(state any, ev event.MatchEvent) any {
	s, ok := state.(MatchState)
	if !ok {
		return state
	}
	if s.AppliedEventIDs[ev.EventID] {
		return s
	}

	s = cloneMatchState(s)
	s.AppliedEventIDs[ev.EventID] = true
	s.Version++
	if s.SportID == "" {
		s.SportID = ev.SportID
	}

	switch ev.Type {
	case event.TypeMatchStarted:
		s.Status = StatusLive
		s.StartedAt = ev.Timestamp
	case event.TypeMatchEnded:
		s.Status = StatusFinished
		s.FinishedAt = ev.Timestamp
	case event.TypeGoalScored:
		if ev.TeamID != "" {
			s.ScoreByTeam[ev.TeamID]++
		}
	case event.TypePointsScored:
		if ev.TeamID != "" {
			s.ScoreByTeam[ev.TeamID] += pointsValue(ev)
		}
	}

	if ev.PlayerID != "" {
		tally := s.Players[ev.PlayerID]
		tally.PlayerID = ev.PlayerID
		if tally.TeamID == "" {
			tally.TeamID = ev.TeamID
		}
		if tally.EventCounts == nil {
			tally.EventCounts = map[string]int{}
		}
		tally.EventCounts[string(ev.Type)]++
		s.Players[ev.PlayerID] = tally
	}

	return s
}

func (MatchStateProjection) ApplyScoreUpdate(state any, update scoring.PlayerScoreUpdate) any {
	s, ok := state.(MatchState)
	if !ok {
		return state
	}
	if update.PlayerID == "" || s.AppliedFactIDs[update.UpdateID] {
		return s
	}

	s = cloneMatchState(s)
	s.AppliedFactIDs[update.UpdateID] = true

	tally := s.Players[update.PlayerID]
	tally.PlayerID = update.PlayerID
	if update.IsBonus {
		tally.BonusPoints += update.PointsAdded
		s.BonusesApplied = true
	} else {
		tally.LivePoints += update.PointsAdded
	}
	tally.TotalPoints = tally.LivePoints + tally.BonusPoints
	s.Players[update.PlayerID] = tally

	return s
}

// TeamScoreProjection is the secondary view proving projections evolve
// independently over the same stream.
type TeamScoreProjection struct{}

const TeamScoreName = "team_score"

func (TeamScoreProjection) Name() string { return TeamScoreName }

func (TeamScoreProjection) Init(matchID string) any {
	return TeamScore{
		MatchID:         matchID,
		ScoreByTeam:     map[string]int{},
		EventsByTeam:    map[string]int{},
		AppliedEventIDs: map[string]bool{},
	}
}

func (TeamScoreProjection) Apply(state any, ev event.MatchEvent) any {
	s, ok := state.(TeamScore)
	if !ok {
		return state
	}
	if s.AppliedEventIDs[ev.EventID] {
		return s
	}

	s = cloneTeamScore(s)
	s.AppliedEventIDs[ev.EventID] = true
	s.Version++

	if ev.TeamID == "" {
		return s
	}
	s.EventsByTeam[ev.TeamID]++
	switch ev.Type {
	case event.TypeGoalScored:
		s.ScoreByTeam[ev.TeamID]++
	case event.TypePointsScored:
		s.ScoreByTeam[ev.TeamID] += pointsValue(ev)
	}
	return s
}

func (TeamScoreProjection) ApplyScoreUpdate(state any, _ scoring.PlayerScoreUpdate) any {
	return state
}

func pointsValue(ev event.MatchEvent) int {
	switch ev.Metadata["points"] {
	case "1":
		return 1
	case "3":
		return 3
	default:
		return 2
	}
}

func cloneMatchState(s MatchState) MatchState {
	out := s
	out.ScoreByTeam = cloneIntMap(s.ScoreByTeam)
	out.AppliedEventIDs = cloneBoolMap(s.AppliedEventIDs)
	out.AppliedFactIDs = cloneBoolMap(s.AppliedFactIDs)
	out.Players = make(map[string]PlayerTally, len(s.Players))
	for id, tally := range s.Players {
		copied := tally
		copied.EventCounts = cloneIntMap(tally.EventCounts)
		out.Players[id] = copied
	}
	return out
}

func cloneTeamScore(s TeamScore) TeamScore {
	out := s
	out.ScoreByTeam = cloneIntMap(s.ScoreByTeam)
	out.EventsByTeam = cloneIntMap(s.EventsByTeam)
	out.AppliedEventIDs = cloneBoolMap(s.AppliedEventIDs)
	return out
}

// cloneIntMap always allocates: decoded snapshots carry nil for maps that
// were empty at save time, and the fold must be able to write to them.
func cloneIntMap(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneBoolMap(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
