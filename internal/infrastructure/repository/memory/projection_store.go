package memory

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/matchpulse/scoring-core/internal/domain/projection"
)

// ProjectionStore keeps projection snapshots as encoded blobs so that
// load behavior matches the database-backed store byte for byte.
type ProjectionStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewProjectionStore() *ProjectionStore {
	return &ProjectionStore{snapshots: make(map[string][]byte)}
}

func snapshotKey(name, matchID string) string {
	return name + "|" + matchID
}

func (s *ProjectionStore) Save(_ context.Context, name, matchID string, state any) error {
	raw, err := sonic.Marshal(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshotKey(name, matchID)] = raw
	return nil
}

func (s *ProjectionStore) Load(_ context.Context, name, matchID string, target any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.snapshots[snapshotKey(name, matchID)]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ProjectionStore) Delete(_ context.Context, name, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, snapshotKey(name, matchID))
	return nil
}

var _ projection.Store = (*ProjectionStore)(nil)
