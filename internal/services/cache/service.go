// Package cache provides the time-bounded cache shared by the quote and news services.
// Entries are (key, value, expiresAt) triples; expiry is checked against an injected clock.
package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Service is a concurrency-safe TTL cache.
type Service struct {
	mu      sync.RWMutex
	entries map[string]entry
	gens    map[string]uint64 // bumped on invalidation; a load started under an older generation is not stored
	group   singleflight.Group
	now     func() time.Time
	logger  arbor.ILogger
}

// Option configures the Service.
type Option func(*Service)

// WithClock replaces time.Now, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new cache service.
func NewService(logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		entries: make(map[string]entry),
		gens:    make(map[string]uint64),
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key if present and not expired.
func (s *Service) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry
		if cur, ok := s.entries[key]; ok && !s.now().Before(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key until now+ttl. A non-positive ttl stores nothing.
func (s *Service) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

// ExpiresAt returns when key expires, or false if it is absent.
func (s *Service) ExpiresAt(key string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e.expiresAt, ok
}

// Invalidate removes key and discards any load for it still in flight.
func (s *Service) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	if _, ok := s.gens[key]; ok {
		s.gens[key]++
	}
	s.mu.Unlock()
}

// InvalidatePrefix removes every key starting with prefix and returns how many were removed.
func (s *Service) InvalidatePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	for key := range s.gens {
		if strings.HasPrefix(key, prefix) {
			s.gens[key]++
		}
	}

	if removed > 0 && s.logger != nil {
		s.logger.Debug().
			Str("prefix", prefix).
			Int("removed", removed).
			Msg("Cache entries invalidated")
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// generation returns key's current generation, registering the key so later
// invalidations can retire loads started now.
func (s *Service) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen, ok := s.gens[key]
	if !ok {
		s.gens[key] = 0
	}
	return gen
}

// setIfCurrent stores value only if key has not been invalidated since gen was read.
func (s *Service) setIfCurrent(key string, value interface{}, ttl time.Duration, gen uint64) bool {
	if ttl <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[key] != gen {
		return false
	}
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return true
}

// GetOrLoad returns the cached value for key, or calls load and caches its result for ttl.
// Concurrent callers for the same key share one load. A load error is returned
// uncached, along with whatever value load produced, so the next call retries.
// A load that was invalidated while running is returned but not stored, and
// callers arriving after the invalidation start a fresh load. The bool reports a cache hit.
func GetOrLoad[T any](s *Service, key string, ttl time.Duration, load func() (T, error)) (T, bool, error) {
	if v, ok := s.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, true, nil
		}
	}

	gen := s.generation(key)
	v, err, _ := s.group.Do(key+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		value, err := load()
		if err != nil {
			return value, err
		}
		if !s.setIfCurrent(key, value, ttl, gen) && ttl > 0 && s.logger != nil {
			s.logger.Debug().Str("key", key).Msg("Discarded load invalidated in flight")
		}
		return value, nil
	})

	typed, _ := v.(T)
	return typed, false, err
}
