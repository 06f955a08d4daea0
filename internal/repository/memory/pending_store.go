package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"treasure-map/internal/domain/pending"
)

const defaultSize = 10_000

// PendingStore keeps deferred actions in process memory. Entries expire
// after the TTL and the oldest are evicted beyond size.
type PendingStore struct {
	// mu makes the Get and Remove in Take one step, so a key is taken once
	mu    sync.Mutex
	cache *expirable.LRU[string, pending.Action]
}

func NewPendingStore(size int, ttl time.Duration) *PendingStore {
	if size <= 0 {
		size = defaultSize
	}
	if ttl <= 0 {
		ttl = pending.DefaultTTL
	}
	return &PendingStore{cache: expirable.NewLRU[string, pending.Action](size, nil, ttl)}
}

func (s *PendingStore) Save(ctx context.Context, key string, a pending.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(key, a)
	return nil
}

func (s *PendingStore) Take(ctx context.Context, key string) (pending.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.cache.Get(key)
	if !ok {
		return pending.Action{}, pending.ErrNotFound
	}
	s.cache.Remove(key)
	return a, nil
}

func (s *PendingStore) Discard(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cache.Remove(key) {
		return pending.ErrNotFound
	}
	return nil
}

func (s *PendingStore) Len() int {
	return s.cache.Len()
}
