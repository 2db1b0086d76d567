// Package session keeps per-user conversational state between requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys used by the HTTP layer.
const (
	KeyTriage     = "triage"
	KeyChat       = "chat"
	KeyLastResult = "last_result"
)

var ErrNotFound = errors.New("session: key not found")

// Store loads and saves JSON-encodable values scoped to one user. Concurrent
// writes for the same user and key are last-writer-wins.
type Store interface {
	Load(ctx context.Context, userID, key string, dest any) error
	Save(ctx context.Context, userID, key string, value any) error
	Delete(ctx context.Context, userID, key string) error
}

type redisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore stores values under "<prefix>:<user>:<key>" with a sliding
// TTL refreshed on every save. A zero ttl means no expiry.
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) Store {
	return &redisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *redisStore) key(userID, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, userID, key)
}

func (s *redisStore) Load(ctx context.Context, userID, key string, dest any) error {
	data, err := s.client.Get(ctx, s.key(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load session %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode session %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Save(ctx context.Context, userID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(userID, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, userID, key string) error {
	return s.client.Del(ctx, s.key(userID, key)).Err()
}
