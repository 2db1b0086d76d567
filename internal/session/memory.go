package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	data    []byte
	expires time.Time
}

type memoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[string]entry
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryStore is a process-local Store for single-instance deployments and
// tests. Values are kept JSON-encoded so callers never share memory with it.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{ttl: ttl, entries: make(map[string]entry), now: time.Now}
}

func (s *memoryStore) Load(ctx context.Context, userID, key string, dest any) error {
	s.mu.Lock()
	e, ok := s.entries[userID+"/"+key]
	if ok && !e.expires.IsZero() && s.now().After(e.expires) {
		delete(s.entries, userID+"/"+key)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(e.data, dest)
}

func (s *memoryStore) Save(ctx context.Context, userID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	e := entry{data: data}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[userID+"/"+key] = e
	s.sweep()
	s.mu.Unlock()
	return nil
}

// sweep drops expired entries at most once per ttl. Callers hold mu.
func (s *memoryStore) sweep() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	if now.Sub(s.lastSweep) < s.ttl {
		return
	}
	s.lastSweep = now
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
}

func (s *memoryStore) Delete(ctx context.Context, userID, key string) error {
	s.mu.Lock()
	delete(s.entries, userID+"/"+key)
	s.mu.Unlock()
	return nil
}
