package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/rules"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
	"github.com/matchpulse/scoring-core/internal/infrastructure/stream"
	"github.com/matchpulse/scoring-core/internal/platform/logging"
)

const defaultAppendAttempts = 5

// ScoreService is the live scoring pipeline: it appends normalized events
// to the match stream under optimistic concurrency, evaluates the sport's
// live rules, persists the resulting score facts, folds them into the
// projections and fans them out to subscribers. Terminal events hand off
// to post-match bonus evaluation.
type ScoreService struct {
	log            event.Log
	scoreRepo      scoring.Repository
	rules          *rules.Registry
	projections    *ProjectionService
	bonuses        *BonusService
	hub            *stream.Hub
	logger         *logging.Logger
	now            func() time.Time
	appendAttempts int
}

func NewScoreService(
	log event.Log,
	scoreRepo scoring.Repository,
	registry *rules.Registry,
	projections *ProjectionService,
	bonuses *BonusService,
	hub *stream.Hub,
	logger *logging.Logger,
) *ScoreService {
	return &ScoreService{
		log:            log,
		scoreRepo:      scoreRepo,
		rules:          registry,
		projections:    projections,
		bonuses:        bonuses,
		hub:            hub,
		logger:         logger,
		now:            time.Now,
		appendAttempts: defaultAppendAttempts,
	}
}

// SubmitLiveEvent runs the full live path for one normalized event and
// returns the stream version it was appended at. Duplicate submissions are
// a no-op and return the current version. Untracked event types for the
// sport are discarded without touching the stream.
func (s *ScoreService) SubmitLiveEvent(ctx context.Context, ev event.MatchEvent) (int64, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoreService.SubmitLiveEvent")
	defer span.End()

	if err := ev.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if ev.SchemaVersion == 0 {
		ev.SchemaVersion = event.SchemaVersion
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now().UTC()
	}

	cfg, err := s.rules.Get(ev.SportID)
	if err != nil {
		return 0, err
	}
	if !cfg.Tracks(ev.Type) {
		s.logger.DebugContext(ctx, "discarded untracked event type",
			"matchId", ev.MatchID,
			"eventType", string(ev.Type),
			"sportId", ev.SportID,
		)
		return s.log.Version(ctx, ev.MatchID)
	}

	state, stateErr := s.projections.MatchState(ctx, ev.MatchID)
	frozen := stateErr == nil && state.Frozen()
	if frozen && ev.Type != event.TypeCorrection {
		return 0, fmt.Errorf("match %s: %w", ev.MatchID, ErrMatchFrozen)
	}

	version, appended, err := s.append(ctx, ev)
	if err != nil {
		return 0, err
	}
	if !appended {
		return version, nil
	}

	if err := s.process(ctx, cfg, ev); err != nil {
		return version, err
	}

	// Corrections landing after the match ended change the inputs the
	// bonus rules saw, so the award set is recomputed and superseded.
	if ev.IsTerminal() || (frozen && ev.Type == event.TypeCorrection) {
		if err := s.bonuses.EvaluateMatch(ctx, ev.MatchID); err != nil {
			s.logger.ErrorContext(ctx, "post-match evaluation failed",
				"matchId", ev.MatchID,
				"error", err,
			)
		}
	}
	return version, nil
}

// append retries lost optimistic-concurrency races with a fresh version
// read. A duplicate event id means another writer already landed this
// exact event; that is success for the caller.
func (s *ScoreService) append(ctx context.Context, ev event.MatchEvent) (int64, bool, error) {
	var lastErr error
	for attempt := 0; attempt < s.appendAttempts; attempt++ {
		expected, err := s.log.Version(ctx, ev.MatchID)
		if err != nil {
			return 0, false, err
		}

		version, err := s.log.Append(ctx, ev.MatchID, ev, expected)
		if err == nil {
			return version, true, nil
		}
		if errors.Is(err, event.ErrDuplicateEvent) {
			s.logger.DebugContext(ctx, "duplicate event submission ignored",
				"matchId", ev.MatchID,
				"eventId", ev.EventID,
			)
			current, verr := s.log.Version(ctx, ev.MatchID)
			if verr != nil {
				return 0, false, verr
			}
			return current, false, nil
		}
		if !errors.Is(err, event.ErrVersionConflict) {
			return 0, false, err
		}
		lastErr = err
	}
	return 0, false, fmt.Errorf("append gave up after %d attempts: %w", s.appendAttempts, lastErr)
}

// process folds the appended event into the projections and, for
// player-attributed events, emits the derived score fact.
func (s *ScoreService) process(ctx context.Context, cfg rules.Config, ev event.MatchEvent) error {
	if err := s.projections.ApplyEvent(ctx, ev); err != nil {
		return err
	}

	// Every player-attributed event yields exactly one update; a zero sum
	// when no rule matched is a valid outcome, not a skip.
	if ev.PlayerID == "" {
		return nil
	}
	points := s.pointsFor(cfg, ev)

	state, err := s.projections.MatchState(ctx, ev.MatchID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	tally := state.Players[ev.PlayerID]

	update := scoring.PlayerScoreUpdate{
		UpdateID:            "su-" + ev.EventID,
		PlayerID:            ev.PlayerID,
		MatchID:             ev.MatchID,
		PointsAdded:         points,
		TotalPoints:         tally.LivePoints + points,
		TriggeringEventID:   ev.EventID,
		TriggeringEventType: ev.Type,
		EmittedAt:           s.now().UTC(),
	}
	if err := s.scoreRepo.AppendScoreUpdate(ctx, update); err != nil {
		return err
	}
	if err := s.projections.ApplyScoreUpdate(ctx, update); err != nil {
		return err
	}
	s.hub.Publish(update)

	s.logger.InfoContext(ctx, "player score updated",
		"matchId", ev.MatchID,
		"playerId", ev.PlayerID,
		"pointsAdded", points,
		"eventType", string(ev.Type),
	)
	return nil
}

// pointsFor evaluates live rules, except for corrections which carry their
// own signed delta in metadata.
func (s *ScoreService) pointsFor(cfg rules.Config, ev event.MatchEvent) int {
	if ev.Type == event.TypeCorrection {
		delta, err := strconv.Atoi(ev.Metadata["points_delta"])
		if err != nil {
			s.logger.Warn("correction event without usable points_delta",
				"eventId", ev.EventID,
				"matchId", ev.MatchID,
			)
			return 0
		}
		return delta
	}
	return cfg.LivePoints(ev)
}
