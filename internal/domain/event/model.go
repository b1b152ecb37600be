package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is stamped on every event produced by this build. Readers
// must tolerate older versions; fields are only ever added.
const SchemaVersion = 1

// Type identifies a kind of match occurrence. The set of valid types is
// per-sport and owned by the rule registry; the log itself treats types as
// opaque strings.
type Type string

const (
	TypeMatchStarted Type = "MATCH_STARTED"
	TypeMatchEnded   Type = "MATCH_ENDED"
	TypeGoalScored   Type = "GOAL_SCORED"
	TypeAssist       Type = "ASSIST"
	TypeCardIssued   Type = "CARD_ISSUED"
	TypePenaltySaved Type = "PENALTY_SAVED"
	TypeCleanSheet   Type = "CLEAN_SHEET"
	TypePointsScored Type = "POINTS_SCORED"
	TypeRebound      Type = "REBOUND"
	TypeBlock        Type = "BLOCK"
	TypeSteal        Type = "STEAL"
	TypeCorrection   Type = "CORRECTION"
)

// MatchEvent is the canonical, provider-agnostic fact all upstream payloads
// normalize into. Once appended to the log it is never mutated or deleted;
// corrections arrive as new compensating events.
type MatchEvent struct {
	EventID       string            `json:"event_id"`
	MatchID       string            `json:"match_id"`
	SportID       string            `json:"sport_id"`
	ProviderID    string            `json:"provider_id"`
	Timestamp     time.Time         `json:"timestamp"`
	Type          Type              `json:"type"`
	PlayerID      string            `json:"player_id,omitempty"`
	TeamID        string            `json:"team_id,omitempty"`
	Minute        int               `json:"minute,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	SchemaVersion int               `json:"schema_version"`
}

// IsTerminal reports whether the event closes its match stream for scoring
// purposes. Post-match evaluation is gated on it.
func (e MatchEvent) IsTerminal() bool {
	return e.Type == TypeMatchEnded
}

// Clone returns a deep copy so callers can hold events across goroutines
// without sharing the metadata map.
func (e MatchEvent) Clone() MatchEvent {
	out := e
	if e.Metadata != nil {
		out.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func (e MatchEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("event id is required")
	}
	if strings.TrimSpace(e.MatchID) == "" {
		return fmt.Errorf("match id is required")
	}
	if strings.TrimSpace(e.SportID) == "" {
		return fmt.Errorf("sport id is required")
	}
	if strings.TrimSpace(string(e.Type)) == "" {
		return fmt.Errorf("event type is required")
	}
	if e.Minute < 0 {
		return fmt.Errorf("minute must be >= 0")
	}
	return nil
}

// DeriveEventID builds a stable identity for upstream occurrences that carry
// no native identifier. The same logical occurrence observed twice, possibly
// through different providers, hashes to the same id so downstream
// deduplication can recognize the repeat.
func DeriveEventID(matchID string, typ Type, playerID string, minute int, discriminator string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s", matchID, typ, playerID, minute, discriminator)
	return "ev-" + hex.EncodeToString(h.Sum(nil))[:32]
}
