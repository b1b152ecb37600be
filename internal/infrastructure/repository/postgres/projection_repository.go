package postgres

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/matchpulse/scoring-core/internal/domain/projection"
	qb "github.com/matchpulse/scoring-core/internal/platform/querybuilder"
)

type projectionSnapshotTableModel struct {
	Name     string `db:"projection_name"`
	MatchID  string `db:"match_id"`
	Snapshot []byte `db:"snapshot"`
}

type ProjectionRepository struct {
	db *sqlx.DB
}

func NewProjectionRepository(db *sqlx.DB) *ProjectionRepository {
	return &ProjectionRepository{db: db}
}

func (r *ProjectionRepository) Save(ctx context.Context, name, matchID string, state any) error {
	raw, err := sonic.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode projection %s/%s: %w", name, matchID, err)
	}

	query := `INSERT INTO projection_snapshots (projection_name, match_id, snapshot, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (projection_name, match_id)
DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, name, matchID, raw); err != nil {
		return fmt.Errorf("save projection %s/%s: %w", name, matchID, err)
	}
	return nil
}

func (r *ProjectionRepository) Load(ctx context.Context, name, matchID string, target any) (bool, error) {
	query, args, err := qb.Select("projection_name", "match_id", "snapshot").
		From("projection_snapshots").
		Where(
			qb.Eq("projection_name", name),
			qb.Eq("match_id", matchID),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build load projection query: %w", err)
	}

	var row projectionSnapshotTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("load projection %s/%s: %w", name, matchID, err)
	}

	if err := sonic.Unmarshal(row.Snapshot, target); err != nil {
		return false, fmt.Errorf("decode projection %s/%s: %w", name, matchID, err)
	}
	return true, nil
}

func (r *ProjectionRepository) Delete(ctx context.Context, name, matchID string) error {
	query := "DELETE FROM projection_snapshots WHERE projection_name = $1 AND match_id = $2"
	if _, err := r.db.ExecContext(ctx, query, name, matchID); err != nil {
		return fmt.Errorf("delete projection %s/%s: %w", name, matchID, err)
	}
	return nil
}

var _ projection.Store = (*ProjectionRepository)(nil)
