package postgres

import "time"

type scoreUpdateTableModel struct {
	ID                int64     `db:"id"`
	UpdateID          string    `db:"update_id"`
	PlayerID          string    `db:"player_id"`
	MatchID           string    `db:"match_id"`
	PointsAdded       int       `db:"points_added"`
	TotalPoints       int       `db:"total_points"`
	TriggeringEventID string    `db:"triggering_event_id"`
	TriggeringType    string    `db:"triggering_event_type"`
	IsBonus           bool      `db:"is_bonus"`
	EmittedAt         int64     `db:"emitted_at"`
	CreatedAt         time.Time `db:"created_at"`
}

type scoreUpdateInsertModel struct {
	UpdateID          string `db:"update_id"`
	PlayerID          string `db:"player_id"`
	MatchID           string `db:"match_id"`
	PointsAdded       int    `db:"points_added"`
	TotalPoints       int    `db:"total_points"`
	TriggeringEventID string `db:"triggering_event_id"`
	TriggeringType    string `db:"triggering_event_type"`
	IsBonus           bool   `db:"is_bonus"`
	EmittedAt         int64  `db:"emitted_at"`
}

type bonusTableModel struct {
	ID          int64     `db:"id"`
	RuleID      string    `db:"rule_id"`
	PlayerID    string    `db:"player_id"`
	MatchID     string    `db:"match_id"`
	Points      int       `db:"points"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

type bonusInsertModel struct {
	RuleID      string `db:"rule_id"`
	PlayerID    string `db:"player_id"`
	MatchID     string `db:"match_id"`
	Points      int    `db:"points"`
	Description string `db:"description"`
}
