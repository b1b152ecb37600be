package memory

import (
	"context"
	"testing"

	"github.com/matchpulse/scoring-core/internal/domain/projection"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
)

func TestScoreRepository_AppendAndList(t *testing.T) {
	t.Parallel()

	repo := NewScoreRepository()
	ctx := context.Background()

	updates := []scoring.PlayerScoreUpdate{
		{UpdateID: "su-1", MatchID: "m-1", PlayerID: "p-1", PointsAdded: 10, TotalPoints: 10},
		{UpdateID: "su-2", MatchID: "m-1", PlayerID: "p-1", PointsAdded: 10, TotalPoints: 20},
		{UpdateID: "su-3", MatchID: "m-2", PlayerID: "p-9", PointsAdded: 5, TotalPoints: 5},
	}
	for _, u := range updates {
		if err := repo.AppendScoreUpdate(ctx, u); err != nil {
			t.Fatalf("append %s: %v", u.UpdateID, err)
		}
	}

	got, err := repo.ListScoreUpdatesByMatch(ctx, "m-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].UpdateID != "su-1" || got[1].UpdateID != "su-2" {
		t.Fatalf("unexpected updates in append order: %+v", got)
	}
}

func TestScoreRepository_AppendDuplicateIsNoOp(t *testing.T) {
	t.Parallel()

	repo := NewScoreRepository()
	ctx := context.Background()

	u := scoring.PlayerScoreUpdate{UpdateID: "su-1", MatchID: "m-1", PlayerID: "p-1", PointsAdded: 10, TotalPoints: 10}
	if err := repo.AppendScoreUpdate(ctx, u); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.AppendScoreUpdate(ctx, u); err != nil {
		t.Fatalf("duplicate append: %v", err)
	}

	got, err := repo.ListScoreUpdatesByMatch(ctx, "m-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("duplicate append must not add a row, got %d", len(got))
	}
}

func TestScoreRepository_ReplaceBonusesSupersedes(t *testing.T) {
	t.Parallel()

	repo := NewScoreRepository()
	ctx := context.Background()

	first := []scoring.Bonus{
		{RuleID: "r-1", PlayerID: "p-1", MatchID: "m-1", Points: 30},
		{RuleID: "r-2", PlayerID: "p-2", MatchID: "m-1", Points: 5},
	}
	if err := repo.ReplaceBonusesByMatch(ctx, "m-1", first); err != nil {
		t.Fatalf("replace: %v", err)
	}

	second := []scoring.Bonus{
		{RuleID: "r-1", PlayerID: "p-1", MatchID: "m-1", Points: 30},
	}
	if err := repo.ReplaceBonusesByMatch(ctx, "m-1", second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := repo.ListBonusesByMatch(ctx, "m-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].RuleID != "r-1" {
		t.Fatalf("earlier bonus set must be fully superseded, got %+v", got)
	}
}

func TestProjectionStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := NewProjectionStore()
	ctx := context.Background()

	state := projection.MatchState{
		MatchID: "m-1",
		Status:  projection.StatusLive,
		Players: map[string]projection.PlayerTally{
			"p-1": {PlayerID: "p-1", LivePoints: 10, TotalPoints: 10},
		},
	}
	if err := store.Save(ctx, projection.MatchStateName, "m-1", state); err != nil {
		t.Fatalf("save: %v", err)
	}

	var loaded projection.MatchState
	found, err := store.Load(ctx, projection.MatchStateName, "m-1", &loaded)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatalf("expected snapshot present")
	}
	if loaded.Players["p-1"].LivePoints != 10 {
		t.Fatalf("snapshot did not round-trip: %+v", loaded)
	}

	if err := store.Delete(ctx, projection.MatchStateName, "m-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	found, err = store.Load(ctx, projection.MatchStateName, "m-1", &loaded)
	if err != nil {
		t.Fatalf("load after delete: %v", err)
	}
	if found {
		t.Fatalf("expected snapshot gone after delete")
	}
}
