package memory

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/matchpulse/scoring-core/internal/domain/event"
)

// EventLog is the in-memory implementation of the append-only match event
// log. Each stream carries its own lock: appends for different matches
// never contend, appends within one match are strictly serialized.
type EventLog struct {
	mu      sync.RWMutex
	streams map[string]*stream
}

type stream struct {
	mu       sync.Mutex
	cond     *sync.Cond
	events   []event.MatchEvent
	eventIDs map[string]struct{}
	closed   bool
}

func NewEventLog() *EventLog {
	return &EventLog{streams: make(map[string]*stream)}
}

func (l *EventLog) stream(matchID string) *stream {
	l.mu.RLock()
	st, ok := l.streams[matchID]
	l.mu.RUnlock()
	if ok {
		return st
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok = l.streams[matchID]; ok {
		return st
	}
	st = &stream{eventIDs: make(map[string]struct{})}
	st.cond = sync.NewCond(&st.mu)
	l.streams[matchID] = st
	return st
}

func (l *EventLog) Append(ctx context.Context, matchID string, ev event.MatchEvent, expectedVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := ev.Validate(); err != nil {
		return 0, err
	}

	st := l.stream(matchID)
	st.mu.Lock()
	defer st.mu.Unlock()

	current := int64(len(st.events))
	if expectedVersion != current {
		return 0, errors.Wrapf(event.ErrVersionConflict, "match=%s expected=%d actual=%d", matchID, expectedVersion, current)
	}
	if _, dup := st.eventIDs[ev.EventID]; dup {
		return 0, errors.Wrapf(event.ErrDuplicateEvent, "match=%s event=%s", matchID, ev.EventID)
	}

	st.events = append(st.events, ev.Clone())
	st.eventIDs[ev.EventID] = struct{}{}
	st.cond.Broadcast()

	return current + 1, nil
}

func (l *EventLog) ReadFrom(ctx context.Context, matchID string, fromVersion int64) ([]event.MatchEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fromVersion < 0 {
		fromVersion = 0
	}

	st := l.stream(matchID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if fromVersion >= int64(len(st.events)) {
		return nil, nil
	}

	out := make([]event.MatchEvent, 0, int64(len(st.events))-fromVersion)
	for _, ev := range st.events[fromVersion:] {
		out = append(out, ev.Clone())
	}
	return out, nil
}

func (l *EventLog) Version(ctx context.Context, matchID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	st := l.stream(matchID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return int64(len(st.events)), nil
}

// Subscribe replays the stream from the start, then delivers live appends
// in order. Cancellation via ctx or the returned func closes the channel
// without touching the log.
func (l *EventLog) Subscribe(ctx context.Context, matchID string) (<-chan event.MatchEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	st := l.stream(matchID)
	out := make(chan event.MatchEvent)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			st.mu.Lock()
			st.cond.Broadcast()
			st.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	go func() {
		defer close(out)

		pos := 0
		for {
			st.mu.Lock()
			for pos >= len(st.events) && !isDone(done) {
				st.cond.Wait()
			}
			if isDone(done) {
				st.mu.Unlock()
				return
			}
			batch := make([]event.MatchEvent, 0, len(st.events)-pos)
			for _, ev := range st.events[pos:] {
				batch = append(batch, ev.Clone())
			}
			pos = len(st.events)
			st.mu.Unlock()

			for _, ev := range batch {
				select {
				case out <- ev:
				case <-done:
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

func isDone(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

var _ event.Log = (*EventLog)(nil)
