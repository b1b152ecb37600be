package rules

import (
	"errors"
	"testing"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("football", FootballConfig()); err != nil {
		t.Fatalf("register football: %v", err)
	}

	cfg, err := registry.Get("FOOTBALL")
	if err != nil {
		t.Fatalf("get football: %v", err)
	}
	if cfg.SportID != "FOOTBALL" {
		t.Fatalf("expected normalized sport id FOOTBALL, got %s", cfg.SportID)
	}

	// lookups are case-insensitive
	if _, err := registry.Get("  football "); err != nil {
		t.Fatalf("case-insensitive get failed: %v", err)
	}
}

func TestRegistry_Get_UnsupportedSport(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	_, err := registry.Get("CRICKET")
	if !errors.Is(err, ErrSportNotSupported) {
		t.Fatalf("expected ErrSportNotSupported, got %v", err)
	}
}

func TestRegistry_Register_RejectsUntrackedRuleType(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	cfg := Config{
		TrackedTypes: []event.Type{event.TypeGoalScored},
		LiveRules: []LiveRule{
			{
				RuleID:      "bad-rule",
				Description: "targets an untracked type",
				EventType:   event.TypeRebound,
				Points:      2,
			},
		},
	}

	err := registry.Register("FOOTBALL", cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRegistry_Register_RejectsDuplicateRuleIDs(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	cfg := Config{
		TrackedTypes: []event.Type{event.TypeGoalScored},
		LiveRules: []LiveRule{
			{RuleID: "dup", Description: "first", EventType: event.TypeGoalScored, Points: 1},
			{RuleID: "dup", Description: "second", EventType: event.TypeGoalScored, Points: 2},
		},
	}

	err := registry.Register("FOOTBALL", cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for duplicate rule ids, got %v", err)
	}
}

func TestRegistry_Register_RejectsNegativeRosterLimit(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	cfg := FootballConfig()
	cfg.RosterLimits["GK"] = -1

	err := registry.Register("FOOTBALL", cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for negative roster limit, got %v", err)
	}
}

func TestRegistry_ConfigIsolation(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	cfg := FootballConfig()
	if err := registry.Register("FOOTBALL", cfg); err != nil {
		t.Fatalf("register: %v", err)
	}

	// mutating the caller's copy must not leak into the registry
	cfg.LiveRules[0].Points = 999
	stored, err := registry.Get("FOOTBALL")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.LiveRules[0].Points == 999 {
		t.Fatalf("registry shares the caller's rule slice")
	}
}

func TestConfig_LivePoints_Additive(t *testing.T) {
	t.Parallel()

	cfg := FootballConfig()

	goal := event.MatchEvent{Type: event.TypeGoalScored}
	if got := cfg.LivePoints(goal); got != 10 {
		t.Fatalf("plain goal: got=%d want=10", got)
	}

	defenderGoal := event.MatchEvent{
		Type:     event.TypeGoalScored,
		Metadata: map[string]string{"position": "DEF"},
	}
	// both the base goal rule and the defender rule match
	if got := cfg.LivePoints(defenderGoal); got != 25 {
		t.Fatalf("defender goal: got=%d want=25", got)
	}

	redCard := event.MatchEvent{
		Type:     event.TypeCardIssued,
		Metadata: map[string]string{"card": "red"},
	}
	if got := cfg.LivePoints(redCard); got != -9 {
		t.Fatalf("red card: got=%d want=-9", got)
	}

	untracked := event.MatchEvent{Type: event.TypeSteal}
	if got := cfg.LivePoints(untracked); got != 0 {
		t.Fatalf("unmatched event: got=%d want=0", got)
	}
}

func TestConfig_Tracks(t *testing.T) {
	t.Parallel()

	cfg := FootballConfig()
	if !cfg.Tracks(event.TypeGoalScored) {
		t.Fatalf("expected goal to be tracked")
	}
	if cfg.Tracks(event.TypeRebound) {
		t.Fatalf("expected rebound to be untracked for football")
	}
	// lifecycle and corrections are always tracked
	if !cfg.Tracks(event.TypeMatchStarted) || !cfg.Tracks(event.TypeMatchEnded) || !cfg.Tracks(event.TypeCorrection) {
		t.Fatalf("lifecycle and correction types must always be tracked")
	}
}

func TestFootball_HatTrickRules(t *testing.T) {
	t.Parallel()

	cfg := FootballConfig()

	player := scoring.PlayerMatchContext{
		PlayerID:    "p-1",
		TeamID:      "t-home",
		EventCounts: map[event.Type]int{event.TypeGoalScored: 3},
	}
	playoffWin := scoring.MatchContext{
		TournamentPhase: "playoff",
		OutcomeByTeam:   map[string]scoring.MatchOutcome{"t-home": scoring.OutcomeWin, "t-away": scoring.OutcomeLoss},
	}

	var gotRules []string
	for _, rule := range cfg.PostMatch {
		if rule.Predicate(player, playoffWin) {
			gotRules = append(gotRules, rule.RuleID)
		}
	}

	want := map[string]bool{
		"football-hat-trick":             true,
		"football-hat-trick-playoff-win": true,
		"football-match-winner":          true,
	}
	if len(gotRules) != len(want) {
		t.Fatalf("expected %d matching rules, got %v", len(want), gotRules)
	}
	for _, id := range gotRules {
		if !want[id] {
			t.Fatalf("unexpected matching rule %s", id)
		}
	}

	// two goals is no hat-trick
	player.EventCounts[event.TypeGoalScored] = 2
	for _, rule := range cfg.PostMatch {
		if rule.RuleID == "football-hat-trick" && rule.Predicate(player, playoffWin) {
			t.Fatalf("hat-trick rule matched with only two goals")
		}
	}
}
