package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps keys in process memory. It is the default store and
// the one used throughout the test suites.
type MemoryStore struct {
	mu   sync.RWMutex
	keys []*Key
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, key *Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := *key
	s.keys = append(s.keys, &k)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, kid string) (*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range s.keys {
		if k.ID == kid {
			c := *k
			return &c, nil
		}
	}
	return nil, ErrKeyNotFound
}

func (s *MemoryStore) Current(_ context.Context, use string) (*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Saved in order, so walk backwards for the newest.
	for i := len(s.keys) - 1; i >= 0; i-- {
		k := s.keys[i]
		if k.Use == use && !k.Revoked() {
			c := *k
			return &c, nil
		}
	}
	return nil, ErrKeyNotFound
}

func (s *MemoryStore) Last(_ context.Context, use string, n int) ([]*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Key
	for i := len(s.keys) - 1; i >= 0; i-- {
		k := s.keys[i]
		if k.Use != use {
			continue
		}
		c := *k
		out = append(out, &c)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Revoke(_ context.Context, kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.keys {
		if k.ID == kid {
			if k.Revoked() {
				return ErrKeyRevoked
			}
			now := time.Now().UTC()
			k.RevokedAt = &now
			return nil
		}
	}
	return ErrKeyNotFound
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = nil
	return nil
}
