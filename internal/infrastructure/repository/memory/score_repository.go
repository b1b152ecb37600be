package memory

import (
	"context"
	"sync"

	"github.com/matchpulse/scoring-core/internal/domain/scoring"
)

// ScoreRepository stores derived score facts in memory.
type ScoreRepository struct {
	mu      sync.RWMutex
	updates map[string][]scoring.PlayerScoreUpdate
	seen    map[string]bool
	bonuses map[string][]scoring.Bonus
}

func NewScoreRepository() *ScoreRepository {
	return &ScoreRepository{
		updates: make(map[string][]scoring.PlayerScoreUpdate),
		seen:    make(map[string]bool),
		bonuses: make(map[string][]scoring.Bonus),
	}
}

// AppendScoreUpdate is idempotent per UpdateID, mirroring the postgres
// implementation's conflict no-op.
func (r *ScoreRepository) AppendScoreUpdate(_ context.Context, update scoring.PlayerScoreUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen[update.UpdateID] {
		return nil
	}
	r.seen[update.UpdateID] = true
	r.updates[update.MatchID] = append(r.updates[update.MatchID], update)
	return nil
}

func (r *ScoreRepository) ListScoreUpdatesByMatch(_ context.Context, matchID string) ([]scoring.PlayerScoreUpdate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]scoring.PlayerScoreUpdate(nil), r.updates[matchID]...), nil
}

func (r *ScoreRepository) ReplaceBonusesByMatch(_ context.Context, matchID string, bonuses []scoring.Bonus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bonuses[matchID] = append([]scoring.Bonus(nil), bonuses...)
	return nil
}

func (r *ScoreRepository) ListBonusesByMatch(_ context.Context, matchID string) ([]scoring.Bonus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]scoring.Bonus(nil), r.bonuses[matchID]...), nil
}

var _ scoring.Repository = (*ScoreRepository)(nil)
