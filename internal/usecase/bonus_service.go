package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/projection"
	"github.com/matchpulse/scoring-core/internal/domain/rules"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
	"github.com/matchpulse/scoring-core/internal/infrastructure/stream"
	"github.com/matchpulse/scoring-core/internal/platform/logging"
)

// BonusService runs post-match rule evaluation. It only fires once the
// stream contains a terminal event; evaluating earlier returns
// ErrMatchNotFinished. Evaluation is idempotent and re-runnable: each run
// replaces the match's full bonus set, superseding earlier awards.
type BonusService struct {
	log         event.Log
	scoreRepo   scoring.Repository
	rules       *rules.Registry
	projections *ProjectionService
	hub         *stream.Hub
	logger      *logging.Logger
	now         func() time.Time
}

func NewBonusService(
	log event.Log,
	scoreRepo scoring.Repository,
	registry *rules.Registry,
	projections *ProjectionService,
	hub *stream.Hub,
	logger *logging.Logger,
) *BonusService {
	return &BonusService{
		log:         log,
		scoreRepo:   scoreRepo,
		rules:       registry,
		projections: projections,
		hub:         hub,
		logger:      logger,
		now:         time.Now,
	}
}

// EvaluateMatch computes and persists the full bonus set for a finished
// match, folds the awards into the projections and publishes them to
// stream subscribers.
func (s *BonusService) EvaluateMatch(ctx context.Context, matchID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.BonusService.EvaluateMatch")
	defer span.End()

	events, err := s.log.ReadFrom(ctx, matchID, 0)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("match %s has no events: %w", matchID, ErrNotFound)
	}

	finished := false
	for _, ev := range events {
		if ev.IsTerminal() {
			finished = true
			break
		}
	}
	if !finished {
		return fmt.Errorf("match %s: %w", matchID, ErrMatchNotFinished)
	}

	cfg, err := s.rules.Get(events[0].SportID)
	if err != nil {
		return err
	}

	state, err := s.projections.MatchState(ctx, matchID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	reevaluation := state.BonusesApplied

	matchCtx, playerCtxs := buildMatchContexts(matchID, events, state)
	bonuses := evaluatePostMatchRules(cfg, matchCtx, playerCtxs)

	if err := s.scoreRepo.ReplaceBonusesByMatch(ctx, matchID, bonuses); err != nil {
		return err
	}

	if reevaluation {
		// Earlier awards may have been superseded; refold everything
		// from the stream plus the replaced bonus set.
		for _, name := range s.projections.Names() {
			if _, err := s.projections.Rebuild(ctx, name, matchID); err != nil {
				return err
			}
		}
	}

	runningBonus := map[string]int{}
	for _, bonus := range bonuses {
		base := state.Players[bonus.PlayerID].LivePoints
		runningBonus[bonus.PlayerID] += bonus.Points
		update := bonus.AsScoreUpdate(base+runningBonus[bonus.PlayerID], s.now().UTC())
		if !reevaluation {
			if err := s.projections.ApplyScoreUpdate(ctx, update); err != nil {
				return err
			}
		}
		s.hub.Publish(update)
	}

	s.logger.InfoContext(ctx, "post-match bonuses evaluated",
		"matchId", matchID,
		"sportId", cfg.SportID,
		"bonuses", len(bonuses),
		"reevaluation", reevaluation,
	)
	return nil
}

// buildMatchContexts derives the per-player and whole-match aggregates the
// post-match rules consume.
func buildMatchContexts(matchID string, events []event.MatchEvent, state projection.MatchState) (scoring.MatchContext, []scoring.PlayerMatchContext) {
	matchCtx := scoring.MatchContext{
		MatchID:       matchID,
		ScoreByTeam:   map[string]int{},
		OutcomeByTeam: map[string]scoring.MatchOutcome{},
	}
	players := map[string]*scoring.PlayerMatchContext{}

	for _, ev := range events {
		if matchCtx.SportID == "" {
			matchCtx.SportID = ev.SportID
		}
		switch ev.Type {
		case event.TypeMatchStarted:
			matchCtx.TournamentPhase = ev.Metadata["phase"]
		case event.TypeMatchEnded:
			matchCtx.FinishedAt = ev.Timestamp
		case event.TypeGoalScored:
			if ev.TeamID != "" {
				matchCtx.ScoreByTeam[ev.TeamID]++
			}
		case event.TypePointsScored:
			if ev.TeamID != "" {
				matchCtx.ScoreByTeam[ev.TeamID] += rules.PointsScoredValue(ev)
			}
		}

		if ev.PlayerID == "" {
			continue
		}
		p, ok := players[ev.PlayerID]
		if !ok {
			p = &scoring.PlayerMatchContext{
				PlayerID:    ev.PlayerID,
				TeamID:      ev.TeamID,
				MatchID:     matchID,
				SportID:     ev.SportID,
				EventCounts: map[event.Type]int{},
				Stats:       map[string]int{},
			}
			players[ev.PlayerID] = p
		}
		if p.TeamID == "" {
			p.TeamID = ev.TeamID
		}
		p.EventCounts[ev.Type]++
		if ev.Type == event.TypePointsScored {
			p.Stats["points"] += rules.PointsScoredValue(ev)
		}
	}

	var best int
	for _, score := range matchCtx.ScoreByTeam {
		if score > best {
			best = score
		}
	}
	winners := 0
	for _, score := range matchCtx.ScoreByTeam {
		if score == best {
			winners++
		}
	}
	for teamID, score := range matchCtx.ScoreByTeam {
		switch {
		case score == best && winners == 1:
			matchCtx.OutcomeByTeam[teamID] = scoring.OutcomeWin
		case score == best:
			matchCtx.OutcomeByTeam[teamID] = scoring.OutcomeDraw
		default:
			matchCtx.OutcomeByTeam[teamID] = scoring.OutcomeLoss
		}
	}

	out := make([]scoring.PlayerMatchContext, 0, len(players))
	for _, p := range players {
		p.LivePoints = state.Players[p.PlayerID].LivePoints
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return matchCtx, out
}

// evaluatePostMatchRules applies every rule to every player, highest
// priority first, rule id breaking ties, so awards come out in a stable
// order regardless of map iteration.
func evaluatePostMatchRules(cfg rules.Config, matchCtx scoring.MatchContext, players []scoring.PlayerMatchContext) []scoring.Bonus {
	ordered := append([]rules.PostMatchRule(nil), cfg.PostMatch...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].RuleID < ordered[j].RuleID
	})

	var bonuses []scoring.Bonus
	for _, rule := range ordered {
		for _, p := range players {
			if rule.Predicate == nil || !rule.Predicate(p, matchCtx) {
				continue
			}
			bonus := rule.Calculate(p, matchCtx)
			bonus.RuleID = rule.RuleID
			bonus.PlayerID = p.PlayerID
			bonus.MatchID = matchCtx.MatchID
			bonuses = append(bonuses, bonus)
		}
	}
	return bonuses
}
