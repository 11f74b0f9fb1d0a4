package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	path      string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type memoryStore struct {
	entries     map[string]memoryEntry
	mutex       sync.RWMutex
	ttl         time.Duration
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
	hits        int64
	misses      int64
}

// NewMemory builds an in-memory cache store. A zero TTL disables expiry.
func NewMemory(cfg Config) Store {
	cleanup := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	s := &memoryStore{
		entries:     make(map[string]memoryEntry),
		ttl:         cfg.TTL,
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) evictExpired() {
	now := time.Now()
	s.mutex.Lock()
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
		}
	}
	s.mutex.Unlock()
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.misses++
		return "", false, nil
	}
	if entry.expired(time.Now()) {
		delete(s.entries, key)
		s.misses++
		return "", false, nil
	}
	s.hits++
	return entry.path, true, nil
}

func (s *memoryStore) Set(_ context.Context, key, path string) error {
	entry := memoryEntry{path: path}
	if s.ttl > 0 {
		entry.expiresAt = time.Now().Add(s.ttl)
	}

	s.mutex.Lock()
	s.entries[key] = entry
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	delete(s.entries, key)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	active := 0
	for _, entry := range s.entries {
		if !entry.expired(now) {
			active++
		}
	}
	return map[string]any{
		"type":        "memory",
		"entries":     active,
		"hits":        s.hits,
		"misses":      s.misses,
		"ttl_seconds": int(s.ttl.Seconds()),
	}, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
