package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
	qb "github.com/matchpulse/scoring-core/internal/platform/querybuilder"
)

type ScoreRepository struct {
	db *sqlx.DB
}

func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

func (r *ScoreRepository) AppendScoreUpdate(ctx context.Context, update scoring.PlayerScoreUpdate) error {
	insertModel := scoreUpdateInsertModel{
		UpdateID:          update.UpdateID,
		PlayerID:          update.PlayerID,
		MatchID:           update.MatchID,
		PointsAdded:       update.PointsAdded,
		TotalPoints:       update.TotalPoints,
		TriggeringEventID: update.TriggeringEventID,
		TriggeringType:    string(update.TriggeringEventType),
		IsBonus:           update.IsBonus,
		EmittedAt:         timeToUnix(update.EmittedAt),
	}
	query, args, err := qb.InsertModel("player_score_updates", insertModel, "ON CONFLICT (update_id) DO NOTHING")
	if err != nil {
		return fmt.Errorf("build append score update query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append score update: %w", err)
	}
	return nil
}

func (r *ScoreRepository) ListScoreUpdatesByMatch(ctx context.Context, matchID string) ([]scoring.PlayerScoreUpdate, error) {
	query, args, err := qb.Select("*").
		From("player_score_updates").
		Where(qb.Eq("match_id", matchID)).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list score updates query: %w", err)
	}

	var rows []scoreUpdateTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list score updates: %w", err)
	}

	out := make([]scoring.PlayerScoreUpdate, 0, len(rows))
	for _, row := range rows {
		out = append(out, scoring.PlayerScoreUpdate{
			UpdateID:            row.UpdateID,
			PlayerID:            row.PlayerID,
			MatchID:             row.MatchID,
			PointsAdded:         row.PointsAdded,
			TotalPoints:         row.TotalPoints,
			TriggeringEventID:   row.TriggeringEventID,
			TriggeringEventType: event.Type(row.TriggeringType),
			IsBonus:             row.IsBonus,
			EmittedAt:           unixToTime(row.EmittedAt),
		})
	}
	return out, nil
}

// ReplaceBonusesByMatch swaps the full bonus set for a match in one
// transaction so a re-evaluation never leaves a reader seeing both the
// old and the new awards.
func (r *ScoreRepository) ReplaceBonusesByMatch(ctx context.Context, matchID string, bonuses []scoring.Bonus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace bonuses tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM match_bonuses WHERE match_id = $1", matchID); err != nil {
		return fmt.Errorf("clear match bonuses: %w", err)
	}

	for _, bonus := range bonuses {
		insertModel := bonusInsertModel{
			RuleID:      bonus.RuleID,
			PlayerID:    bonus.PlayerID,
			MatchID:     matchID,
			Points:      bonus.Points,
			Description: bonus.Description,
		}
		query, args, err := qb.InsertModel("match_bonuses", insertModel, "")
		if err != nil {
			return fmt.Errorf("build insert bonus query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert bonus %s for %s: %w", bonus.RuleID, bonus.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace bonuses tx: %w", err)
	}
	return nil
}

func (r *ScoreRepository) ListBonusesByMatch(ctx context.Context, matchID string) ([]scoring.Bonus, error) {
	query, args, err := qb.Select("*").
		From("match_bonuses").
		Where(qb.Eq("match_id", matchID)).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list bonuses query: %w", err)
	}

	var rows []bonusTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list bonuses: %w", err)
	}

	out := make([]scoring.Bonus, 0, len(rows))
	for _, row := range rows {
		out = append(out, scoring.Bonus{
			RuleID:      row.RuleID,
			PlayerID:    row.PlayerID,
			MatchID:     row.MatchID,
			Points:      row.Points,
			Description: row.Description,
		})
	}
	return out, nil
}

var _ scoring.Repository = (*ScoreRepository)(nil)
