package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"treasure-map/internal/domain/pending"
)

type PendingStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewPendingStore(rdb *goredis.Client, ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = pending.DefaultTTL
	}
	return &PendingStore{rdb: rdb, ttl: ttl}
}

func (s *PendingStore) Save(ctx context.Context, key string, a pending.Action) error {
	if err := s.rdb.Set(ctx, pendingKey(key), a.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save pending action: %w", err)
	}
	return nil
}

// Take reads and deletes in one GETDEL so two requests can't both replay.
func (s *PendingStore) Take(ctx context.Context, key string) (pending.Action, error) {
	raw, err := s.rdb.GetDel(ctx, pendingKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return pending.Action{}, pending.ErrNotFound
	}
	if err != nil {
		return pending.Action{}, fmt.Errorf("failed to take pending action: %w", err)
	}
	return pending.ParseAction(raw)
}

func (s *PendingStore) Discard(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, pendingKey(key)).Result()
	if err != nil {
		return fmt.Errorf("failed to discard pending action: %w", err)
	}
	if n == 0 {
		return pending.ErrNotFound
	}
	return nil
}

func pendingKey(visitorID string) string {
	return "pending_action:" + visitorID
}
