package rules

import (
	"strconv"
	"time"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
)

// BasketballConfig is the stock basketball rule set.
func BasketballConfig() Config {
	return Config{
		SportID: "BASKETBALL",
		TrackedTypes: []event.Type{
			event.TypeMatchStarted,
			event.TypeMatchEnded,
			event.TypePointsScored,
			event.TypeRebound,
			event.TypeBlock,
			event.TypeSteal,
			event.TypeAssist,
			event.TypeCorrection,
		},
		RosterLimits: map[string]int{
			"G": 2,
			"F": 2,
			"C": 1,
		},
		MatchDuration: 48 * time.Minute,
		LiveRules: []LiveRule{
			{
				RuleID:      "basketball-points",
				Description: "Field goal or free throw",
				EventType:   event.TypePointsScored,
				Points:      2,
			},
			{
				RuleID:      "basketball-three-pointer",
				Description: "Three point field goal",
				EventType:   event.TypePointsScored,
				Points:      1,
				Predicate: func(ev event.MatchEvent) bool {
					return ev.Metadata["points"] == "3"
				},
			},
			{
				RuleID:      "basketball-rebound",
				Description: "Rebound",
				EventType:   event.TypeRebound,
				Points:      1,
			},
			{
				RuleID:      "basketball-block",
				Description: "Shot blocked",
				EventType:   event.TypeBlock,
				Points:      2,
			},
			{
				RuleID:      "basketball-steal",
				Description: "Steal",
				EventType:   event.TypeSteal,
				Points:      2,
			},
			{
				RuleID:      "basketball-assist",
				Description: "Assist",
				EventType:   event.TypeAssist,
				Points:      1,
			},
		},
		PostMatch: []PostMatchRule{
			{
				RuleID:   "basketball-double-double",
				Priority: 100,
				Predicate: func(p scoring.PlayerMatchContext, _ scoring.MatchContext) bool {
					return categoriesInDoubleFigures(p) >= 2
				},
				Calculate: func(p scoring.PlayerMatchContext, _ scoring.MatchContext) scoring.Bonus {
					return scoring.Bonus{Points: 15, Description: "Double-double"}
				},
			},
			{
				RuleID:   "basketball-triple-double",
				Priority: 110,
				Predicate: func(p scoring.PlayerMatchContext, _ scoring.MatchContext) bool {
					return categoriesInDoubleFigures(p) >= 3
				},
				Calculate: func(p scoring.PlayerMatchContext, _ scoring.MatchContext) scoring.Bonus {
					return scoring.Bonus{Points: 30, Description: "Triple-double"}
				},
			},
		},
	}
}

func categoriesInDoubleFigures(p scoring.PlayerMatchContext) int {
	count := 0
	if p.Stats["points"] >= 10 {
		count++
	}
	for _, t := range []event.Type{event.TypeRebound, event.TypeAssist, event.TypeSteal, event.TypeBlock} {
		if p.Count(t) >= 10 {
			count++
		}
	}
	return count
}

// PointsScoredValue reads the scored point value from event metadata,
// defaulting to 2 when the provider omitted it.
func PointsScoredValue(ev event.MatchEvent) int {
	raw := ev.Metadata["points"]
	if raw == "" {
		return 2
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 2
	}
	return value
}
