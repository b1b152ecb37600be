package cache

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"

	"github.com/matchpulse/scoring-core/internal/domain/projection"
	basecache "github.com/matchpulse/scoring-core/internal/platform/cache"
)

// ProjectionStore caches snapshot bytes in front of a slower store.
// Snapshots are encoded once and unmarshalled per read so cached state
// can never be mutated through a shared pointer.
type ProjectionStore struct {
	next  projection.Store
	cache *basecache.Store
}

func NewProjectionStore(next projection.Store, cache *basecache.Store) *ProjectionStore {
	return &ProjectionStore{next: next, cache: cache}
}

func snapshotKey(name, matchID string) string {
	return "projection:" + name + ":" + matchID
}

func (s *ProjectionStore) Save(ctx context.Context, name, matchID string, state any) error {
	if err := s.next.Save(ctx, name, matchID, state); err != nil {
		return err
	}

	raw, err := sonic.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode projection snapshot for cache")
	}
	s.cache.Set(ctx, snapshotKey(name, matchID), raw)
	return nil
}

func (s *ProjectionStore) Load(ctx context.Context, name, matchID string, target any) (bool, error) {
	key := snapshotKey(name, matchID)
	if v, ok := s.cache.Get(ctx, key); ok {
		raw, _ := v.([]byte)
		if err := sonic.Unmarshal(raw, target); err != nil {
			return false, errors.Wrap(err, "decode cached projection snapshot")
		}
		return true, nil
	}

	found, err := s.next.Load(ctx, name, matchID, target)
	if err != nil || !found {
		return found, err
	}

	raw, err := sonic.Marshal(target)
	if err != nil {
		return false, errors.Wrap(err, "encode projection snapshot for cache")
	}
	s.cache.Set(ctx, key, raw)
	return true, nil
}

func (s *ProjectionStore) Delete(ctx context.Context, name, matchID string) error {
	s.cache.Delete(ctx, snapshotKey(name, matchID))
	return s.next.Delete(ctx, name, matchID)
}

var _ projection.Store = (*ProjectionStore)(nil)
