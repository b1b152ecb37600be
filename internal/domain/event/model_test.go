package event

import (
	"testing"
	"time"
)

func TestMatchEvent_Validate(t *testing.T) {
	t.Parallel()

	valid := MatchEvent{
		EventID: "ev-1",
		MatchID: "m-1",
		SportID: "FOOTBALL",
		Type:    TypeGoalScored,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*MatchEvent)
	}{
		{"missing event id", func(e *MatchEvent) { e.EventID = " " }},
		{"missing match id", func(e *MatchEvent) { e.MatchID = "" }},
		{"missing sport id", func(e *MatchEvent) { e.SportID = "" }},
		{"missing type", func(e *MatchEvent) { e.Type = "" }},
		{"negative minute", func(e *MatchEvent) { e.Minute = -1 }},
	}
	for _, tc := range cases {
		ev := valid
		tc.mutate(&ev)
		if err := ev.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestDeriveEventID_Stable(t *testing.T) {
	t.Parallel()

	a := DeriveEventID("m-1", TypeGoalScored, "p-1", 23, "1")
	b := DeriveEventID("m-1", TypeGoalScored, "p-1", 23, "1")
	if a != b {
		t.Fatalf("same occurrence must derive the same id: %s != %s", a, b)
	}

	c := DeriveEventID("m-1", TypeGoalScored, "p-1", 23, "2")
	if a == c {
		t.Fatalf("different discriminators must not collide")
	}
	d := DeriveEventID("m-2", TypeGoalScored, "p-1", 23, "1")
	if a == d {
		t.Fatalf("different matches must not collide")
	}
}

func TestMatchEvent_Clone_DoesNotShareMetadata(t *testing.T) {
	t.Parallel()

	original := MatchEvent{
		EventID:   "ev-1",
		MatchID:   "m-1",
		SportID:   "FOOTBALL",
		Type:      TypeGoalScored,
		Timestamp: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC),
		Metadata:  map[string]string{"position": "DEF"},
	}

	clone := original.Clone()
	clone.Metadata["position"] = "FWD"

	if original.Metadata["position"] != "DEF" {
		t.Fatalf("clone mutated the original metadata map")
	}
}
