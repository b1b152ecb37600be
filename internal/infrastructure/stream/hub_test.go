package stream

import (
	"testing"
	"time"

	"github.com/matchpulse/scoring-core/internal/domain/scoring"
)

func TestHub_PublishReachesMatchSubscribers(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	defer hub.Close()

	ch1, cancel1 := hub.Subscribe("m-1")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("m-1")
	defer cancel2()
	other, cancelOther := hub.Subscribe("m-2")
	defer cancelOther()

	update := scoring.PlayerScoreUpdate{UpdateID: "su-1", MatchID: "m-1", PlayerID: "p-1", PointsAdded: 10}
	hub.Publish(update)

	for _, ch := range []<-chan scoring.PlayerScoreUpdate{ch1, ch2} {
		select {
		case got := <-ch:
			if got.UpdateID != "su-1" {
				t.Fatalf("unexpected update: %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive update")
		}
	}

	select {
	case got := <-other:
		t.Fatalf("subscriber of another match received %+v", got)
	default:
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	defer hub.Close()

	ch, cancel := hub.Subscribe("m-1")
	if hub.SubscriberCount("m-1") != 1 {
		t.Fatalf("expected one subscriber")
	}

	cancel()
	cancel() // idempotent

	if _, open := <-ch; open {
		t.Fatalf("expected channel closed after cancel")
	}
	if hub.SubscriberCount("m-1") != 0 {
		t.Fatalf("expected subscriber removed")
	}

	// publishing into an empty match is a no-op
	hub.Publish(scoring.PlayerScoreUpdate{UpdateID: "su-1", MatchID: "m-1"})
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	defer hub.Close()

	ch, cancel := hub.Subscribe("m-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// one more than the buffer; the overflow must be dropped, not block
		for i := 0; i <= subscriberBuffer; i++ {
			hub.Publish(scoring.PlayerScoreUpdate{UpdateID: "su", MatchID: "m-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}

	if len(ch) != subscriberBuffer {
		t.Fatalf("expected a full buffer, got %d", len(ch))
	}
}

func TestHub_SubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	hub.Close()
	hub.Close() // idempotent

	ch, cancel := hub.Subscribe("m-1")
	defer cancel()
	if _, open := <-ch; open {
		t.Fatalf("expected closed channel from closed hub")
	}
}
