package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matchpulse/scoring-core/internal/domain/event"
)

func testEvent(id string) event.MatchEvent {
	return event.MatchEvent{
		EventID: id,
		MatchID: "m-1",
		SportID: "FOOTBALL",
		Type:    event.TypeGoalScored,
	}
}

func TestEventLog_AppendAndRead(t *testing.T) {
	t.Parallel()

	log := NewEventLog()
	ctx := context.Background()

	v, err := log.Append(ctx, "m-1", testEvent("ev-1"), 0)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected version 1, got %d", v)
	}

	v, err = log.Append(ctx, "m-1", testEvent("ev-2"), 1)
	if err != nil {
		t.Fatalf("append second: %v", err)
	}
	if v != 2 {
		t.Fatalf("expected version 2, got %d", v)
	}

	events, err := log.ReadFrom(ctx, "m-1", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 2 || events[0].EventID != "ev-1" || events[1].EventID != "ev-2" {
		t.Fatalf("unexpected stream contents: %+v", events)
	}

	tail, err := log.ReadFrom(ctx, "m-1", 1)
	if err != nil {
		t.Fatalf("read tail: %v", err)
	}
	if len(tail) != 1 || tail[0].EventID != "ev-2" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
}

func TestEventLog_VersionConflict(t *testing.T) {
	t.Parallel()

	log := NewEventLog()
	ctx := context.Background()

	if _, err := log.Append(ctx, "m-1", testEvent("ev-1"), 0); err != nil {
		t.Fatalf("append: %v", err)
	}

	_, err := log.Append(ctx, "m-1", testEvent("ev-2"), 0)
	if !errors.Is(err, event.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	// losing append must not have written anything
	v, err := log.Version(ctx, "m-1")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected version 1 after rejected append, got %d", v)
	}
}

func TestEventLog_DuplicateEventID(t *testing.T) {
	t.Parallel()

	log := NewEventLog()
	ctx := context.Background()

	if _, err := log.Append(ctx, "m-1", testEvent("ev-1"), 0); err != nil {
		t.Fatalf("append: %v", err)
	}

	_, err := log.Append(ctx, "m-1", testEvent("ev-1"), 1)
	if !errors.Is(err, event.ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}
}

func TestEventLog_UnknownMatch(t *testing.T) {
	t.Parallel()

	log := NewEventLog()
	ctx := context.Background()

	v, err := log.Version(ctx, "nope")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected version 0 for unknown match, got %d", v)
	}

	events, err := log.ReadFrom(ctx, "nope", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty stream, got %+v", events)
	}
}

func TestEventLog_ConcurrentAppendSingleWinner(t *testing.T) {
	t.Parallel()

	log := NewEventLog()
	ctx := context.Background()

	const writers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(writers)
	start := make(chan struct{})

	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := log.Append(ctx, "m-1", testEvent(fmt.Sprintf("ev-%d", i)), 0)
			if err == nil {
				wins.Add(1)
			} else if !errors.Is(err, event.ErrVersionConflict) {
				t.Errorf("unexpected append error: %v", err)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one winner at version 1, got %d", got)
	}
	v, _ := log.Version(ctx, "m-1")
	if v != 1 {
		t.Fatalf("expected stream length 1, got %d", v)
	}
}

func TestEventLog_SubscribeCatchUpThenLive(t *testing.T) {
	t.Parallel()

	log := NewEventLog()
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	if _, err := log.Append(ctx, "m-1", testEvent("ev-1"), 0); err != nil {
		t.Fatalf("append: %v", err)
	}

	ch, cancel, err := log.Subscribe(ctx, "m-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	first := receiveEvent(t, ch)
	if first.EventID != "ev-1" {
		t.Fatalf("expected historical ev-1 first, got %s", first.EventID)
	}

	if _, err := log.Append(ctx, "m-1", testEvent("ev-2"), 1); err != nil {
		t.Fatalf("live append: %v", err)
	}

	second := receiveEvent(t, ch)
	if second.EventID != "ev-2" {
		t.Fatalf("expected live ev-2, got %s", second.EventID)
	}

	cancel()
	select {
	case _, open := <-ch:
		if open {
			t.Fatalf("expected channel closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}

	// cancel is idempotent
	cancel()
}

func receiveEvent(t *testing.T, ch <-chan event.MatchEvent) event.MatchEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return event.MatchEvent{}
	}
}
