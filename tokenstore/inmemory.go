package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

// InMemoryStore is a single-process Store for local development and
// tests. It honors the same TTL and consume semantics as the Redis
// store but shares nothing across replicas.
type InMemoryStore struct {
	mu       sync.Mutex
	records  map[string]memoryEntry
	consumed map[string]time.Time
}

type memoryEntry struct {
	rec      *Record
	evictAt  time.Time
	hasEvict bool
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:  make(map[string]memoryEntry),
		consumed: make(map[string]time.Time),
	}
}

func (s *InMemoryStore) Put(_ context.Context, rec *Record, ttl time.Duration) error {
	if rec == nil || rec.Value == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "record and record value are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{rec: rec.clone()}
	if ttl > 0 {
		entry.evictAt = time.Now().Add(ttl)
		entry.hasEvict = true
	}
	s.records[cacheKey(rec.Kind, rec.Value)] = entry
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, kind Kind, value string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(kind, value)
	if !ok {
		return nil, errors.ErrNotFound
	}
	return rec.clone(), nil
}

func (s *InMemoryStore) Delete(_ context.Context, kind Kind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, cacheKey(kind, value))
	return nil
}

func (s *InMemoryStore) Consume(_ context.Context, kind Kind, value string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cacheKey(kind, value)
	rec, ok := s.live(kind, value)
	if !ok {
		if markedAt, consumed := s.consumed[key]; consumed && time.Since(markedAt) < ConsumedMarkerTTL {
			return nil, errors.ErrCodeConsumed
		}
		return nil, errors.ErrNotFound
	}

	delete(s.records, key)
	s.consumed[key] = time.Now()
	return rec.clone(), nil
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

// live returns the record if present and unexpired, pruning it otherwise.
// Callers must hold s.mu.
func (s *InMemoryStore) live(kind Kind, value string) (*Record, bool) {
	key := cacheKey(kind, value)
	entry, ok := s.records[key]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if (entry.hasEvict && now.After(entry.evictAt)) || entry.rec.Expired(now) {
		delete(s.records, key)
		return nil, false
	}
	return entry.rec, true
}
