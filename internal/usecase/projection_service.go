package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/projection"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
	"github.com/matchpulse/scoring-core/internal/platform/logging"
	"github.com/matchpulse/scoring-core/internal/platform/resilience"
)

// ProjectionService maintains the read models: it folds appended events and
// score facts into every registered projection incrementally, and can throw
// a snapshot away and rebuild it from the stream on demand.
type ProjectionService struct {
	log           event.Log
	scoreRepo     scoring.Repository
	store         projection.Store
	logger        *logging.Logger
	now           func() time.Time
	rebuildFlight resilience.SingleFlight

	mu          sync.Mutex
	projections map[string]projection.Projection
	matchLocks  map[string]*sync.Mutex
}

func NewProjectionService(log event.Log, scoreRepo scoring.Repository, store projection.Store, logger *logging.Logger) *ProjectionService {
	s := &ProjectionService{
		log:         log,
		scoreRepo:   scoreRepo,
		store:       store,
		logger:      logger,
		now:         time.Now,
		projections: make(map[string]projection.Projection),
		matchLocks:  make(map[string]*sync.Mutex),
	}
	s.Register(projection.MatchStateProjection{})
	s.Register(projection.TeamScoreProjection{})
	return s
}

func (s *ProjectionService) Register(p projection.Projection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projections[p.Name()] = p
}

func (s *ProjectionService) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.projections))
	for name := range s.projections {
		names = append(names, name)
	}
	return names
}

// matchLock serializes writes per match so two concurrent folds never race
// on the same snapshot. Reads go straight to the store.
func (s *ProjectionService) matchLock(matchID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.matchLocks[matchID]
	if !ok {
		lock = &sync.Mutex{}
		s.matchLocks[matchID] = lock
	}
	return lock
}

func (s *ProjectionService) projection(name string) (projection.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projections[name]
	if !ok {
		return nil, fmt.Errorf("projection %q: %w", name, ErrNotFound)
	}
	return p, nil
}

// loadState decodes the stored snapshot into the projection's concrete
// state type, or returns the initial state when no snapshot exists.
func (s *ProjectionService) loadState(ctx context.Context, p projection.Projection, matchID string) (any, error) {
	switch p.Name() {
	case projection.MatchStateName:
		var state projection.MatchState
		found, err := s.store.Load(ctx, p.Name(), matchID, &state)
		if err != nil {
			return nil, err
		}
		if !found {
			return p.Init(matchID), nil
		}
		return state, nil
	case projection.TeamScoreName:
		var state projection.TeamScore
		found, err := s.store.Load(ctx, p.Name(), matchID, &state)
		if err != nil {
			return nil, err
		}
		if !found {
			return p.Init(matchID), nil
		}
		return state, nil
	default:
		return nil, fmt.Errorf("projection %q has no registered state type: %w", p.Name(), ErrNotFound)
	}
}

// ApplyEvent folds one appended event into every registered projection.
func (s *ProjectionService) ApplyEvent(ctx context.Context, ev event.MatchEvent) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.ProjectionService.ApplyEvent")
	defer span.End()

	lock := s.matchLock(ev.MatchID)
	lock.Lock()
	defer lock.Unlock()

	for _, name := range s.Names() {
		p, err := s.projection(name)
		if err != nil {
			return err
		}
		state, err := s.loadState(ctx, p, ev.MatchID)
		if err != nil {
			return fmt.Errorf("load %s for %s: %w", name, ev.MatchID, err)
		}
		next := p.Apply(state, ev)
		if err := s.store.Save(ctx, name, ev.MatchID, next); err != nil {
			return fmt.Errorf("save %s for %s: %w", name, ev.MatchID, err)
		}
	}
	return nil
}

// ApplyScoreUpdate folds one score fact into every registered projection.
func (s *ProjectionService) ApplyScoreUpdate(ctx context.Context, update scoring.PlayerScoreUpdate) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.ProjectionService.ApplyScoreUpdate")
	defer span.End()

	lock := s.matchLock(update.MatchID)
	lock.Lock()
	defer lock.Unlock()

	for _, name := range s.Names() {
		p, err := s.projection(name)
		if err != nil {
			return err
		}
		state, err := s.loadState(ctx, p, update.MatchID)
		if err != nil {
			return fmt.Errorf("load %s for %s: %w", name, update.MatchID, err)
		}
		next := p.ApplyScoreUpdate(state, update)
		if err := s.store.Save(ctx, name, update.MatchID, next); err != nil {
			return fmt.Errorf("save %s for %s: %w", name, update.MatchID, err)
		}
	}
	return nil
}

// GetState returns the current snapshot for one projection of one match.
func (s *ProjectionService) GetState(ctx context.Context, name, matchID string) (any, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ProjectionService.GetState")
	defer span.End()

	if _, err := s.projection(name); err != nil {
		return nil, err
	}

	switch name {
	case projection.MatchStateName:
		var state projection.MatchState
		found, err := s.store.Load(ctx, name, matchID, &state)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("projection %s for match %s: %w", name, matchID, ErrNotFound)
		}
		return state, nil
	case projection.TeamScoreName:
		var state projection.TeamScore
		found, err := s.store.Load(ctx, name, matchID, &state)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("projection %s for match %s: %w", name, matchID, ErrNotFound)
		}
		return state, nil
	default:
		return nil, fmt.Errorf("projection %q has no registered state type: %w", name, ErrNotFound)
	}
}

// MatchState is a typed convenience wrapper over GetState.
func (s *ProjectionService) MatchState(ctx context.Context, matchID string) (projection.MatchState, error) {
	state, err := s.GetState(ctx, projection.MatchStateName, matchID)
	if err != nil {
		return projection.MatchState{}, err
	}
	return state.(projection.MatchState), nil
}

// Rebuild discards the snapshot and refolds the full stream plus stored
// score facts and current bonus awards. Concurrent rebuilds of the same
// projection collapse into one. A cancelled context aborts before the
// save, leaving the previous snapshot untouched.
func (s *ProjectionService) Rebuild(ctx context.Context, name, matchID string) (any, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ProjectionService.Rebuild")
	defer span.End()

	result, err, shared := s.rebuildFlight.Do(name+"|"+matchID, func() (any, error) {
		return s.rebuild(ctx, name, matchID)
	})
	if shared && s.logger != nil {
		s.logger.DebugContext(ctx, "rebuild collapsed into in-flight run",
			"projection", name,
			"matchId", matchID,
		)
	}
	return result, err
}

func (s *ProjectionService) rebuild(ctx context.Context, name, matchID string) (any, error) {
	p, err := s.projection(name)
	if err != nil {
		return nil, err
	}

	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	events, err := s.log.ReadFrom(ctx, matchID, 0)
	if err != nil {
		return nil, fmt.Errorf("read stream for rebuild of %s: %w", matchID, err)
	}

	state := p.Init(matchID)
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state = p.Apply(state, ev)
	}

	updates, err := s.scoreRepo.ListScoreUpdatesByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("list score facts for rebuild of %s: %w", matchID, err)
	}
	for _, update := range updates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state = p.ApplyScoreUpdate(state, update)
	}

	bonuses, err := s.scoreRepo.ListBonusesByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("list bonuses for rebuild of %s: %w", matchID, err)
	}
	for _, bonus := range bonuses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state = p.ApplyScoreUpdate(state, bonus.AsScoreUpdate(0, s.now().UTC()))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, name, matchID, state); err != nil {
		return nil, fmt.Errorf("save rebuilt %s for %s: %w", name, matchID, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "projection rebuilt",
			"projection", name,
			"matchId", matchID,
			"events", len(events),
			"scoreFacts", len(updates),
			"bonuses", len(bonuses),
		)
	}
	return state, nil
}
