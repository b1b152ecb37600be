package rules

import (
	"time"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
)

// FootballConfig is the stock association-football rule set. Deployments
// override it through the registry configuration source at boot.
func FootballConfig() Config {
	return Config{
		SportID: "FOOTBALL",
		TrackedTypes: []event.Type{
			event.TypeMatchStarted,
			event.TypeMatchEnded,
			event.TypeGoalScored,
			event.TypeAssist,
			event.TypeCardIssued,
			event.TypePenaltySaved,
			event.TypeCleanSheet,
			event.TypeCorrection,
		},
		RosterLimits: map[string]int{
			"GK":  1,
			"DEF": 5,
			"MID": 5,
			"FWD": 3,
		},
		MatchDuration: 90 * time.Minute,
		LiveRules: []LiveRule{
			{
				RuleID:      "football-goal",
				Description: "Goal scored",
				EventType:   event.TypeGoalScored,
				Points:      10,
			},
			{
				RuleID:      "football-goal-defender",
				Description: "Goal scored by a defender",
				EventType:   event.TypeGoalScored,
				Points:      15,
				Predicate: func(ev event.MatchEvent) bool {
					return ev.Metadata["position"] == "DEF"
				},
			},
			{
				RuleID:      "football-assist",
				Description: "Assist",
				EventType:   event.TypeAssist,
				Points:      5,
			},
			{
				RuleID:      "football-penalty-saved",
				Description: "Penalty saved",
				EventType:   event.TypePenaltySaved,
				Points:      15,
			},
			{
				RuleID:      "football-clean-sheet",
				Description: "Clean sheet",
				EventType:   event.TypeCleanSheet,
				Points:      12,
			},
			{
				RuleID:      "football-red-card",
				Description: "Red card",
				EventType:   event.TypeCardIssued,
				Points:      -9,
				Predicate: func(ev event.MatchEvent) bool {
					return ev.Metadata["card"] == "red"
				},
			},
			{
				RuleID:      "football-yellow-card",
				Description: "Yellow card",
				EventType:   event.TypeCardIssued,
				Points:      -3,
				Predicate: func(ev event.MatchEvent) bool {
					return ev.Metadata["card"] == "yellow"
				},
			},
		},
		PostMatch: []PostMatchRule{
			{
				RuleID:   "football-hat-trick",
				Priority: 100,
				Predicate: func(p scoring.PlayerMatchContext, _ scoring.MatchContext) bool {
					return p.Count(event.TypeGoalScored) >= 3
				},
				Calculate: func(p scoring.PlayerMatchContext, _ scoring.MatchContext) scoring.Bonus {
					return scoring.Bonus{Points: 30, Description: "Hat-trick"}
				},
			},
			{
				RuleID:   "football-hat-trick-playoff-win",
				Priority: 90,
				Predicate: func(p scoring.PlayerMatchContext, m scoring.MatchContext) bool {
					return p.Count(event.TypeGoalScored) >= 3 &&
						m.TournamentPhase == "playoff" &&
						m.TeamWon(p.TeamID)
				},
				Calculate: func(p scoring.PlayerMatchContext, _ scoring.MatchContext) scoring.Bonus {
					return scoring.Bonus{Points: 40, Description: "Hat-trick in a won playoff match"}
				},
			},
			{
				RuleID:   "football-match-winner",
				Priority: 50,
				Predicate: func(p scoring.PlayerMatchContext, m scoring.MatchContext) bool {
					return m.TeamWon(p.TeamID)
				},
				Calculate: func(p scoring.PlayerMatchContext, _ scoring.MatchContext) scoring.Bonus {
					return scoring.Bonus{Points: 5, Description: "Match won"}
				},
			},
		},
	}
}
