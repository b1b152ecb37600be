package stream

import (
	"sync"

	"github.com/matchpulse/scoring-core/internal/domain/scoring"
	"github.com/matchpulse/scoring-core/internal/platform/logging"
)

const subscriberBuffer = 256

// Hub fans player score updates out to per-match subscribers. Publish
// never blocks the scoring path: a subscriber that stops draining its
// channel loses updates rather than stalling everyone else.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]chan scoring.PlayerScoreUpdate
	nextID      int64
	closed      bool
	logger      *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		subscribers: make(map[string]map[int64]chan scoring.PlayerScoreUpdate),
		logger:      logger,
	}
}

// Subscribe registers a listener for one match. The returned cancel
// func is idempotent and closes the channel.
func (h *Hub) Subscribe(matchID string) (<-chan scoring.PlayerScoreUpdate, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan scoring.PlayerScoreUpdate, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	h.nextID++
	id := h.nextID
	if h.subscribers[matchID] == nil {
		h.subscribers[matchID] = make(map[int64]chan scoring.PlayerScoreUpdate)
	}
	h.subscribers[matchID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			subs, ok := h.subscribers[matchID]
			if !ok {
				return
			}
			if _, ok := subs[id]; !ok {
				return
			}
			delete(subs, id)
			if len(subs) == 0 {
				delete(h.subscribers, matchID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(update scoring.PlayerScoreUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, ch := range h.subscribers[update.MatchID] {
		select {
		case ch <- update:
		default:
			h.logger.Warn("score update dropped for slow subscriber",
				"matchId", update.MatchID,
				"updateId", update.UpdateID,
			)
		}
	}
}

func (h *Hub) SubscriberCount(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers[matchID])
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	h.subscribers = make(map[string]map[int64]chan scoring.PlayerScoreUpdate)
}
