package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	qb "github.com/matchpulse/scoring-core/internal/platform/querybuilder"
)

const (
	eventStreamVersionConstraint = "match_events_match_id_version_key"
	eventIDConstraint            = "match_events_event_id_key"
)

// EventLogRepository persists match event streams with one row per
// (match_id, version) slot. The unique index on that pair is what turns
// a lost optimistic-concurrency race into event.ErrVersionConflict.
type EventLogRepository struct {
	db           *sqlx.DB
	pollInterval time.Duration
}

func NewEventLogRepository(db *sqlx.DB, pollInterval time.Duration) *EventLogRepository {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	return &EventLogRepository{db: db, pollInterval: pollInterval}
}

func (r *EventLogRepository) Append(ctx context.Context, matchID string, ev event.MatchEvent, expectedVersion int64) (int64, error) {
	if err := ev.Validate(); err != nil {
		return 0, err
	}
	if ev.MatchID != matchID {
		return 0, fmt.Errorf("event match id %q does not belong to stream %q", ev.MatchID, matchID)
	}

	metadata, err := sonic.Marshal(ev.Metadata)
	if err != nil {
		return 0, fmt.Errorf("encode event metadata: %w", err)
	}

	version := expectedVersion + 1
	insertModel := matchEventInsertModel{
		EventID:       ev.EventID,
		MatchID:       matchID,
		SportID:       ev.SportID,
		ProviderID:    ev.ProviderID,
		EventType:     string(ev.Type),
		PlayerID:      ev.PlayerID,
		TeamID:        ev.TeamID,
		Minute:        ev.Minute,
		Metadata:      metadata,
		OccurredAt:    timeToUnix(ev.Timestamp),
		Version:       version,
		SchemaVersion: ev.SchemaVersion,
	}
	query, args, err := qb.InsertModel("match_events", insertModel, "")
	if err != nil {
		return 0, fmt.Errorf("build append event query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, eventStreamVersionConstraint) {
			return 0, fmt.Errorf("append %s to %s at version %d: %w", ev.EventID, matchID, expectedVersion, event.ErrVersionConflict)
		}
		if isUniqueViolation(err, eventIDConstraint) {
			return 0, fmt.Errorf("append %s to %s: %w", ev.EventID, matchID, event.ErrDuplicateEvent)
		}
		return 0, fmt.Errorf("append event: %w", err)
	}
	return version, nil
}

func (r *EventLogRepository) ReadFrom(ctx context.Context, matchID string, fromVersion int64) ([]event.MatchEvent, error) {
	query, args, err := qb.Select("*").
		From("match_events").
		Where(
			qb.Eq("match_id", matchID),
			qb.Expr("version > ?", fromVersion),
		).
		OrderBy("version").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build read events query: %w", err)
	}

	var rows []matchEventTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	out := make([]event.MatchEvent, 0, len(rows))
	for _, row := range rows {
		ev, err := rowToEvent(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *EventLogRepository) Version(ctx context.Context, matchID string) (int64, error) {
	var version int64
	query := "SELECT COALESCE(MAX(version), 0) FROM match_events WHERE match_id = $1"
	if err := r.db.GetContext(ctx, &version, query, matchID); err != nil {
		return 0, fmt.Errorf("read stream version: %w", err)
	}
	return version, nil
}

// Subscribe polls for new rows. The database has no push channel the way
// the in-memory log does, so the returned channel lags by up to one poll
// interval.
func (r *EventLogRepository) Subscribe(ctx context.Context, matchID string) (<-chan event.MatchEvent, func(), error) {
	if _, err := r.Version(ctx, matchID); err != nil {
		return nil, nil, err
	}

	out := make(chan event.MatchEvent)
	pollCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)

		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		cursor := int64(0)
		for {
			events, err := r.ReadFrom(pollCtx, matchID, cursor)
			if err == nil {
				for _, ev := range events {
					select {
					case out <- ev:
						cursor++
					case <-pollCtx.Done():
						return
					}
				}
			}

			select {
			case <-ticker.C:
			case <-pollCtx.Done():
				return
			}
		}
	}()

	return out, cancel, nil
}

func rowToEvent(row matchEventTableModel) (event.MatchEvent, error) {
	var metadata map[string]string
	if len(row.Metadata) > 0 {
		if err := sonic.Unmarshal(row.Metadata, &metadata); err != nil {
			return event.MatchEvent{}, fmt.Errorf("decode event metadata for %s: %w", row.EventID, err)
		}
	}
	return event.MatchEvent{
		EventID:       row.EventID,
		MatchID:       row.MatchID,
		SportID:       row.SportID,
		ProviderID:    row.ProviderID,
		Timestamp:     unixToTime(row.OccurredAt),
		Type:          event.Type(row.EventType),
		PlayerID:      row.PlayerID,
		TeamID:        row.TeamID,
		Minute:        row.Minute,
		Metadata:      metadata,
		SchemaVersion: row.SchemaVersion,
	}, nil
}

var _ event.Log = (*EventLogRepository)(nil)
