package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/infrastructure/provider"
	"github.com/matchpulse/scoring-core/internal/platform/cache"
	"github.com/matchpulse/scoring-core/internal/platform/logging"
	"github.com/matchpulse/scoring-core/internal/platform/resilience"
)

const (
	defaultDedupWindow     = 10 * time.Minute
	defaultScheduleTTL     = 30 * time.Second
	defaultHealthInterval  = 30 * time.Second
	defaultIngestWorkers   = 32
	defaultIngestRateLimit = 200
)

// ProviderStatus is the gateway's current view of one upstream provider.
type ProviderStatus struct {
	ProviderID     string                  `json:"provider_id"`
	Priority       int                     `json:"priority"`
	Healthy        bool                    `json:"healthy"`
	CircuitState   resilience.CircuitState `json:"circuit_state"`
	QuotaRemaining int                     `json:"quota_remaining"`
	QuotaLimit     int                     `json:"quota_limit"`
	CheckedAt      time.Time               `json:"checked_at"`
	Error          string                  `json:"error,omitempty"`
}

// GatewayConfig tunes the ingestion edge.
type GatewayConfig struct {
	DedupWindow    time.Duration
	ScheduleTTL    time.Duration
	HealthInterval time.Duration
	IngestWorkers  int
	RatePerSecond  int
	RateBurst      int
	Retry          resilience.RetryConfig
	CircuitBreaker resilience.CircuitBreakerConfig
}

func (c GatewayConfig) Normalize() GatewayConfig {
	if c.DedupWindow <= 0 {
		c.DedupWindow = defaultDedupWindow
	}
	if c.ScheduleTTL <= 0 {
		c.ScheduleTTL = defaultScheduleTTL
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = defaultHealthInterval
	}
	if c.IngestWorkers <= 0 {
		c.IngestWorkers = defaultIngestWorkers
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = defaultIngestRateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = c.RatePerSecond
	}
	c.Retry = resilience.NormalizeRetryConfig(c.Retry)
	c.CircuitBreaker = resilience.NormalizeCircuitBreakerConfig(c.CircuitBreaker)
	return c
}

// GatewayService is the resilient front door for provider traffic. It
// normalizes nothing itself; adapters hand it canonical events. Its job is
// everything around them: rate limiting, a time-bounded duplicate window,
// per-provider circuit breaking, retry with backoff for transient upstream
// failures, and priority failover between providers streaming the same
// match.
type GatewayService struct {
	providers []provider.Adapter
	breakers  map[string]*resilience.CircuitBreaker
	limiter   *rate.Limiter
	scorer    *ScoreService
	cfg       GatewayConfig
	workers   *ants.Pool
	schedules *cache.Store
	logger    *logging.Logger
	now       func() time.Time

	dedupMu   sync.Mutex
	seenAt    map[string]time.Time
	lastSweep time.Time

	healthWG     conc.WaitGroup
	healthCancel context.CancelFunc

	healthMu sync.RWMutex
	degraded map[string]bool
}

// NewGatewayService wires the gateway. Adapter order is provider priority:
// index zero is preferred, later entries are fallbacks.
func NewGatewayService(providers []provider.Adapter, scorer *ScoreService, cfg GatewayConfig, logger *logging.Logger) (*GatewayService, error) {
	cfg = cfg.Normalize()

	workers, err := ants.NewPool(cfg.IngestWorkers)
	if err != nil {
		return nil, fmt.Errorf("create ingest worker pool: %w", err)
	}

	breakers := make(map[string]*resilience.CircuitBreaker, len(providers))
	for _, adapter := range providers {
		breakers[adapter.ProviderID()] = resilience.NewCircuitBreaker(cfg.CircuitBreaker)
	}

	s := &GatewayService{
		providers: providers,
		breakers:  breakers,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		scorer:    scorer,
		cfg:       cfg,
		workers:   workers,
		schedules: cache.NewStore(cfg.ScheduleTTL),
		logger:    logger,
		now:       time.Now,
		seenAt:    make(map[string]time.Time),
		degraded:  make(map[string]bool),
	}

	healthCtx, cancel := context.WithCancel(context.Background())
	s.healthCancel = cancel
	s.healthWG.Go(func() { s.healthLoop(healthCtx) })

	return s, nil
}

func (s *GatewayService) Close() {
	s.healthCancel()
	s.healthWG.Wait()
	s.workers.Release()
}

// healthLoop periodically re-probes every provider so that a paused match
// can resume once a degraded provider recovers.
func (s *GatewayService) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshHealth(ctx)
		}
	}
}

// refreshHealth recomputes the degraded set from probe results, reported
// health and quota exhaustion. Circuit state is consulted separately at
// selection time.
func (s *GatewayService) refreshHealth(ctx context.Context) {
	statuses := s.ProviderHealth(ctx)

	degraded := make(map[string]bool, len(statuses))
	for _, status := range statuses {
		exhausted := status.QuotaLimit > 0 && status.QuotaRemaining <= 0
		degraded[status.ProviderID] = status.Error != "" || !status.Healthy || exhausted
	}

	s.healthMu.Lock()
	s.degraded = degraded
	s.healthMu.Unlock()
}

// SubmitLiveEvent is the push ingestion path: one normalized event from an
// external caller. Duplicates inside the dedup window return the current
// stream version without re-processing.
func (s *GatewayService) SubmitLiveEvent(ctx context.Context, ev event.MatchEvent) (int64, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GatewayService.SubmitLiveEvent")
	defer span.End()

	if !s.limiter.Allow() {
		return 0, fmt.Errorf("ingest rate exceeded: %w", ErrRateLimited)
	}
	if s.seenRecently(ev.EventID) {
		s.logger.DebugContext(ctx, "event inside dedup window ignored",
			"eventId", ev.EventID,
			"matchId", ev.MatchID,
		)
		return s.scorer.log.Version(ctx, ev.MatchID)
	}

	version, err := s.scorer.SubmitLiveEvent(ctx, ev)
	if err != nil {
		return 0, err
	}
	s.markSeen(ev.EventID)
	return version, nil
}

// StreamMatch consumes a match's event feed with priority failover: it
// works down the provider list, skipping providers whose circuit is open,
// and retries transient stream failures with backoff before moving on.
// Cross-provider duplicates are absorbed by the dedup window and the log's
// event id uniqueness. Returns once a terminal event was processed or the
// context ended.
func (s *GatewayService) StreamMatch(ctx context.Context, sportID, externalMatchID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.GatewayService.StreamMatch")
	defer span.End()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		adapter, ok := s.nextAvailable()
		if !ok {
			return fmt.Errorf("streaming %s/%s: %w", sportID, externalMatchID, ErrNoProviderAvailable)
		}
		breaker := s.breakers[adapter.ProviderID()]

		finished, err := s.consumeStream(ctx, adapter, breaker, sportID, externalMatchID)
		if finished {
			return nil
		}
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		s.logger.WarnContext(ctx, "provider stream failed, failing over",
			"providerId", adapter.ProviderID(),
			"matchId", externalMatchID,
			"error", err,
		)
	}
}

// consumeStream runs one provider's feed until it ends. The bool result
// reports whether the match reached its terminal event.
func (s *GatewayService) consumeStream(ctx context.Context, adapter provider.Adapter, breaker *resilience.CircuitBreaker, sportID, externalMatchID string) (bool, error) {
	var eventCh <-chan event.MatchEvent
	var errCh <-chan error

	err := resilience.Retry(ctx, s.cfg.Retry, func(err error) bool {
		return errors.Is(err, provider.ErrTransient)
	}, func(ctx context.Context) error {
		if allowErr := breaker.Allow(); allowErr != nil {
			return fmt.Errorf("provider %s: %w", adapter.ProviderID(), allowErr)
		}
		var openErr error
		eventCh, errCh, openErr = adapter.StreamEvents(ctx, sportID, externalMatchID)
		if openErr != nil {
			breaker.RecordFailure()
			return openErr
		}
		breaker.RecordSuccess()
		return nil
	})
	if err != nil {
		return false, err
	}

	finished := false
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case streamErr, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			breaker.RecordFailure()
			return false, streamErr
		case ev, ok := <-eventCh:
			if !ok {
				return finished, nil
			}
			breaker.RecordSuccess()
			if ev.IsTerminal() {
				finished = true
			}
			s.dispatch(ctx, ev)
		}
	}
}

// dispatch hands one streamed event to the worker pool and waits for it to
// finish before the next event of the same stream is read: a match stream
// is strictly sequential, the pool only bounds concurrency across matches.
// A saturated pool processes inline rather than dropping data.
func (s *GatewayService) dispatch(ctx context.Context, ev event.MatchEvent) {
	if s.seenRecently(ev.EventID) {
		return
	}

	done := make(chan struct{})
	task := func() {
		defer close(done)
		if _, err := s.scorer.SubmitLiveEvent(ctx, ev); err != nil {
			s.logger.ErrorContext(ctx, "streamed event processing failed",
				"eventId", ev.EventID,
				"matchId", ev.MatchID,
				"error", err,
			)
			return
		}
		s.markSeen(ev.EventID)
	}
	if err := s.workers.Submit(task); err != nil {
		task()
		return
	}
	<-done
}

// FetchSchedule returns the sport's upcoming matches from the first
// provider that answers, in priority order. Results are cached for a
// short TTL so schedule polling does not burn provider quota.
func (s *GatewayService) FetchSchedule(ctx context.Context, sportID string) ([]provider.ScheduledMatch, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GatewayService.FetchSchedule")
	defer span.End()

	v, err := s.schedules.GetOrLoad(ctx, "schedule:"+sportID, func(ctx context.Context) (any, error) {
		return s.fetchScheduleUncached(ctx, sportID)
	})
	if err != nil {
		return nil, err
	}

	matches, _ := v.([]provider.ScheduledMatch)
	return append([]provider.ScheduledMatch(nil), matches...), nil
}

func (s *GatewayService) fetchScheduleUncached(ctx context.Context, sportID string) ([]provider.ScheduledMatch, error) {
	var lastErr error
	for _, adapter := range s.providers {
		breaker := s.breakers[adapter.ProviderID()]
		if err := breaker.Allow(); err != nil {
			lastErr = fmt.Errorf("provider %s: %w", adapter.ProviderID(), err)
			continue
		}

		var matches []provider.ScheduledMatch
		err := resilience.Retry(ctx, s.cfg.Retry, func(err error) bool {
			return errors.Is(err, provider.ErrTransient)
		}, func(ctx context.Context) error {
			var fetchErr error
			matches, fetchErr = adapter.FetchSchedule(ctx, sportID)
			return fetchErr
		})
		if err != nil {
			breaker.RecordFailure()
			lastErr = err
			continue
		}
		breaker.RecordSuccess()
		return matches, nil
	}
	if lastErr == nil {
		lastErr = ErrNoProviderAvailable
	}
	return nil, fmt.Errorf("fetch schedule for %s: %w", sportID, lastErr)
}

// nextAvailable returns the highest-priority provider whose circuit
// currently admits calls and whose last health probe did not degrade it.
func (s *GatewayService) nextAvailable() (provider.Adapter, bool) {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()

	for _, adapter := range s.providers {
		id := adapter.ProviderID()
		if s.degraded[id] {
			continue
		}
		if s.breakers[id].State() != resilience.CircuitStateOpen {
			return adapter, true
		}
	}
	return nil, false
}

// ProviderHealth probes every provider concurrently and merges the result
// with the gateway's own circuit view.
func (s *GatewayService) ProviderHealth(ctx context.Context) []ProviderStatus {
	ctx, span := startUsecaseSpan(ctx, "usecase.GatewayService.ProviderHealth")
	defer span.End()

	if len(s.providers) == 0 {
		return nil
	}

	statuses := make([]ProviderStatus, len(s.providers))
	p := pool.New().WithMaxGoroutines(len(s.providers))
	for i, adapter := range s.providers {
		i, adapter := i, adapter
		p.Go(func() {
			breaker := s.breakers[adapter.ProviderID()]
			status := ProviderStatus{
				ProviderID:   adapter.ProviderID(),
				Priority:     i,
				CircuitState: breaker.State(),
				CheckedAt:    s.now().UTC(),
			}

			health, err := adapter.CheckHealth(ctx)
			if err != nil {
				breaker.RecordFailure()
				status.Error = err.Error()
			} else {
				breaker.RecordSuccess()
				status.Healthy = health.Healthy && breaker.State() == resilience.CircuitStateClosed
				status.QuotaRemaining = health.QuotaRemaining
				status.QuotaLimit = health.QuotaLimit
			}
			statuses[i] = status
		})
	}
	p.Wait()
	return statuses
}

// seenRecently consults the time-bounded duplicate window, sweeping
// expired entries at most once per window.
func (s *GatewayService) seenRecently(eventID string) bool {
	s.dedupMu.Lock()
	defer s.dedupMu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > s.cfg.DedupWindow {
		for id, at := range s.seenAt {
			if now.Sub(at) > s.cfg.DedupWindow {
				delete(s.seenAt, id)
			}
		}
		s.lastSweep = now
	}

	at, ok := s.seenAt[eventID]
	return ok && now.Sub(at) <= s.cfg.DedupWindow
}

func (s *GatewayService) markSeen(eventID string) {
	s.dedupMu.Lock()
	defer s.dedupMu.Unlock()
	s.seenAt[eventID] = s.now()
}
