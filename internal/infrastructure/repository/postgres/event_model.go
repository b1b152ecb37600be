package postgres

import "time"

type matchEventTableModel struct {
	ID            int64     `db:"id"`
	EventID       string    `db:"event_id"`
	MatchID       string    `db:"match_id"`
	SportID       string    `db:"sport_id"`
	ProviderID    string    `db:"provider_id"`
	EventType     string    `db:"event_type"`
	PlayerID      string    `db:"player_id"`
	TeamID        string    `db:"team_id"`
	Minute        int       `db:"minute"`
	Metadata      []byte    `db:"metadata"`
	OccurredAt    int64     `db:"occurred_at"`
	Version       int64     `db:"version"`
	SchemaVersion int       `db:"schema_version"`
	CreatedAt     time.Time `db:"created_at"`
}

type matchEventInsertModel struct {
	EventID       string `db:"event_id"`
	MatchID       string `db:"match_id"`
	SportID       string `db:"sport_id"`
	ProviderID    string `db:"provider_id"`
	EventType     string `db:"event_type"`
	PlayerID      string `db:"player_id"`
	TeamID        string `db:"team_id"`
	Minute        int    `db:"minute"`
	Metadata      []byte `db:"metadata"`
	OccurredAt    int64  `db:"occurred_at"`
	Version       int64  `db:"version"`
	SchemaVersion int    `db:"schema_version"`
}
