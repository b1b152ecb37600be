package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/infrastructure/provider"
	"github.com/matchpulse/scoring-core/internal/platform/logging"
	"github.com/matchpulse/scoring-core/internal/platform/resilience"
)

type fakeAdapter struct {
	id            string
	schedule      []provider.ScheduledMatch
	scheduleErr   error
	streamEvents  []event.MatchEvent
	streamOpenErr error
	health        provider.Health
	healthErr     error

	scheduleCalls atomic.Int32
	streamCalls   atomic.Int32
}

func (f *fakeAdapter) ProviderID() string { return f.id }

func (f *fakeAdapter) FetchSchedule(_ context.Context, _ string) ([]provider.ScheduledMatch, error) {
	f.scheduleCalls.Add(1)
	if f.scheduleErr != nil {
		return nil, f.scheduleErr
	}
	return f.schedule, nil
}

func (f *fakeAdapter) StreamEvents(ctx context.Context, _, _ string) (<-chan event.MatchEvent, <-chan error, error) {
	f.streamCalls.Add(1)
	if f.streamOpenErr != nil {
		return nil, nil, f.streamOpenErr
	}

	eventCh := make(chan event.MatchEvent)
	errCh := make(chan error)
	go func() {
		defer close(eventCh)
		defer close(errCh)
		for _, ev := range f.streamEvents {
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return eventCh, errCh, nil
}

func (f *fakeAdapter) CheckHealth(_ context.Context) (provider.Health, error) {
	if f.healthErr != nil {
		return provider.Health{}, f.healthErr
	}
	return f.health, nil
}

func testGatewayConfig() GatewayConfig {
	return GatewayConfig{
		DedupWindow:   time.Minute,
		ScheduleTTL:   time.Minute,
		RatePerSecond: 1000,
		RateBurst:     1000,
		Retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
		CircuitBreaker: resilience.CircuitBreakerConfig{
			FailureThreshold:   3,
			Cooldown:           time.Minute,
			HalfOpenSuccessRun: 1,
		},
	}
}

func newGateway(t *testing.T, s *scoringStack, cfg GatewayConfig, adapters ...provider.Adapter) *GatewayService {
	t.Helper()
	gateway, err := NewGatewayService(adapters, s.scorer, cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(gateway.Close)
	return gateway
}

func TestGatewayService_SubmitLiveEvent_DedupWindow(t *testing.T) {
	t.Parallel()

	s := newScoringStack(t)
	gateway := newGateway(t, s, testGatewayConfig())
	ctx := context.Background()

	goal := footballEvent("ev-goal", "m1", event.TypeGoalScored)
	goal.PlayerID = "p1"
	goal.TeamID = "t-home"

	v1, err := gateway.SubmitLiveEvent(ctx, goal)
	require.NoError(t, err)

	v2, err := gateway.SubmitLiveEvent(ctx, goal)
	require.NoError(t, err)
	require.Equal(t, v1, v2, "duplicate inside the window must not advance the stream")

	facts, err := s.scores.ListScoreUpdatesByMatch(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestGatewayService_SubmitLiveEvent_RateLimited(t *testing.T) {
	t.Parallel()

	s := newScoringStack(t)
	cfg := testGatewayConfig()
	cfg.RatePerSecond = 1
	cfg.RateBurst = 1
	gateway := newGateway(t, s, cfg)
	ctx := context.Background()

	first := footballEvent("ev-1", "m1", event.TypeGoalScored)
	first.PlayerID = "p1"
	_, err := gateway.SubmitLiveEvent(ctx, first)
	require.NoError(t, err)

	second := footballEvent("ev-2", "m1", event.TypeGoalScored)
	second.PlayerID = "p1"
	_, err = gateway.SubmitLiveEvent(ctx, second)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestGatewayService_FetchSchedule_FailsOverAndCaches(t *testing.T) {
	t.Parallel()

	s := newScoringStack(t)
	broken := &fakeAdapter{id: "primary", scheduleErr: provider.ErrTransient}
	healthy := &fakeAdapter{id: "backup", schedule: []provider.ScheduledMatch{
		{ExternalMatchID: "x-1", MatchID: "m1", SportID: "FOOTBALL", KickoffAt: time.Now().Add(time.Hour)},
	}}
	gateway := newGateway(t, s, testGatewayConfig(), broken, healthy)
	ctx := context.Background()

	matches, err := gateway.FetchSchedule(ctx, "FOOTBALL")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "m1", matches[0].MatchID)

	// transient failures were retried before failing over
	require.Equal(t, int32(2), broken.scheduleCalls.Load())
	require.Equal(t, int32(1), healthy.scheduleCalls.Load())

	// a second fetch inside the TTL is served from cache
	_, err = gateway.FetchSchedule(ctx, "FOOTBALL")
	require.NoError(t, err)
	require.Equal(t, int32(1), healthy.scheduleCalls.Load())
}

func TestGatewayService_FetchSchedule_AuthFailureNotRetried(t *testing.T) {
	t.Parallel()

	s := newScoringStack(t)
	unauthorized := &fakeAdapter{id: "primary", scheduleErr: provider.ErrAuthOrQuota}
	healthy := &fakeAdapter{id: "backup", schedule: []provider.ScheduledMatch{{MatchID: "m1"}}}
	gateway := newGateway(t, s, testGatewayConfig(), unauthorized, healthy)

	matches, err := gateway.FetchSchedule(context.Background(), "FOOTBALL")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, int32(1), unauthorized.scheduleCalls.Load(), "auth failures must fail over immediately")
}

func TestGatewayService_StreamMatch_FailsOverToHealthyProvider(t *testing.T) {
	t.Parallel()

	s := newScoringStack(t)

	matchEvents := []event.MatchEvent{
		footballEvent("ev-start", "m1", event.TypeMatchStarted),
		{EventID: "ev-goal", MatchID: "m1", SportID: "FOOTBALL", Type: event.TypeGoalScored, PlayerID: "p1", TeamID: "t-home", Minute: 20},
		footballEvent("ev-end", "m1", event.TypeMatchEnded),
	}
	broken := &fakeAdapter{id: "primary", streamOpenErr: provider.ErrTransient}
	healthy := &fakeAdapter{id: "backup", streamEvents: matchEvents}

	cfg := testGatewayConfig()
	cfg.CircuitBreaker.FailureThreshold = 1
	gateway := newGateway(t, s, cfg, broken, healthy)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, gateway.StreamMatch(ctx, "FOOTBALL", "m1"))

	state, err := s.projections.MatchState(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, 10, state.Players["p1"].LivePoints)
	require.True(t, broken.streamCalls.Load() >= 1)
	require.Equal(t, int32(1), healthy.streamCalls.Load())
}

func TestGatewayService_StreamMatch_CrossProviderRedeliveryIsDeduplicated(t *testing.T) {
	t.Parallel()

	s := newScoringStack(t)
	matchEvents := []event.MatchEvent{
		footballEvent("ev-start", "m1", event.TypeMatchStarted),
		{EventID: "ev-goal", MatchID: "m1", SportID: "FOOTBALL", Type: event.TypeGoalScored, PlayerID: "p1", TeamID: "t-home", Minute: 20},
		footballEvent("ev-end", "m1", event.TypeMatchEnded),
	}
	// both providers deliver the same logical occurrences
	first := &fakeAdapter{id: "primary", streamEvents: matchEvents}
	second := &fakeAdapter{id: "backup", streamEvents: matchEvents}
	gateway := newGateway(t, s, testGatewayConfig(), first, second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, gateway.StreamMatch(ctx, "FOOTBALL", "m1"))
	require.NoError(t, gateway.StreamMatch(ctx, "FOOTBALL", "m1"))

	events, err := s.log.ReadFrom(context.Background(), "m1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3, "redelivered occurrences must not duplicate in the log")

	facts, err := s.scores.ListScoreUpdatesByMatch(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestGatewayService_ProviderHealth(t *testing.T) {
	t.Parallel()

	s := newScoringStack(t)
	healthy := &fakeAdapter{id: "primary", health: provider.Health{Healthy: true, QuotaRemaining: 900, QuotaLimit: 1000}}
	failing := &fakeAdapter{id: "backup", healthErr: provider.ErrTransient}
	gateway := newGateway(t, s, testGatewayConfig(), healthy, failing)

	statuses := gateway.ProviderHealth(context.Background())
	require.Len(t, statuses, 2)

	require.Equal(t, "primary", statuses[0].ProviderID)
	require.True(t, statuses[0].Healthy)
	require.Equal(t, resilience.CircuitStateClosed, statuses[0].CircuitState)
	require.Equal(t, 900, statuses[0].QuotaRemaining)

	require.Equal(t, "backup", statuses[1].ProviderID)
	require.False(t, statuses[1].Healthy)
	require.NotEmpty(t, statuses[1].Error)
}

func TestGatewayService_HealthRefreshDegradesProvider(t *testing.T) {
	t.Parallel()

	s := newScoringStack(t)
	matchEvents := []event.MatchEvent{
		footballEvent("ev-start", "m1", event.TypeMatchStarted),
		{EventID: "ev-goal", MatchID: "m1", SportID: "FOOTBALL", Type: event.TypeGoalScored, PlayerID: "p1", TeamID: "t-home", Minute: 20},
		footballEvent("ev-end", "m1", event.TypeMatchEnded),
	}
	exhausted := &fakeAdapter{id: "primary", health: provider.Health{Healthy: true, QuotaRemaining: 0, QuotaLimit: 1000}, streamEvents: matchEvents}
	healthy := &fakeAdapter{id: "backup", health: provider.Health{Healthy: true, QuotaRemaining: 500, QuotaLimit: 1000}, streamEvents: matchEvents}
	gateway := newGateway(t, s, testGatewayConfig(), exhausted, healthy)

	gateway.refreshHealth(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, gateway.StreamMatch(ctx, "FOOTBALL", "m1"))
	require.Equal(t, int32(0), exhausted.streamCalls.Load())
	require.Equal(t, int32(1), healthy.streamCalls.Load())

	// quota replenished: the next health cycle restores priority order
	exhausted.health.QuotaRemaining = 800
	gateway.refreshHealth(context.Background())

	adapter, ok := gateway.nextAvailable()
	require.True(t, ok)
	require.Equal(t, "primary", adapter.ProviderID())
}

func TestGatewayService_StreamMatch_PreservesStreamOrder(t *testing.T) {
	t.Parallel()

	s := newScoringStack(t)
	matchEvents := []event.MatchEvent{footballEvent("ev-start", "m1", event.TypeMatchStarted)}
	for i := 1; i <= 20; i++ {
		matchEvents = append(matchEvents, event.MatchEvent{
			EventID: fmt.Sprintf("ev-goal-%02d", i), MatchID: "m1", SportID: "FOOTBALL",
			Type: event.TypeGoalScored, PlayerID: "p1", TeamID: "t-home", Minute: i,
		})
	}
	matchEvents = append(matchEvents, footballEvent("ev-end", "m1", event.TypeMatchEnded))

	adapter := &fakeAdapter{id: "primary", streamEvents: matchEvents}
	// default worker count: ordering must not depend on pool sizing
	gateway := newGateway(t, s, testGatewayConfig(), adapter)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, gateway.StreamMatch(ctx, "FOOTBALL", "m1"))

	logged, err := s.log.ReadFrom(context.Background(), "m1", 0)
	require.NoError(t, err)
	require.Len(t, logged, len(matchEvents), "no streamed event may be lost")
	for i, ev := range logged {
		require.Equal(t, matchEvents[i].EventID, ev.EventID, "log order must match upstream order")
	}
}
