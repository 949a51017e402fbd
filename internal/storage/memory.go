package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	obj     Object
	expires time.Time
}

// MemoryStore is an in-process AudioStore. Entries expire after ttl; a
// zero ttl keeps them until the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, data []byte, contentType string) (string, error) {
	ref := uuid.NewString()
	now := s.now()

	entry := memoryEntry{obj: Object{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		CreatedAt:   now,
	}}
	if s.ttl > 0 {
		entry.expires = now.Add(s.ttl)
	}

	s.mu.Lock()
	s.sweepLocked(now)
	s.entries[ref] = entry
	s.mu.Unlock()

	return ref, nil
}

func (s *MemoryStore) Get(_ context.Context, ref string) (*Object, error) {
	s.mu.RLock()
	entry, ok := s.entries[ref]
	s.mu.RUnlock()

	if !ok || s.expired(entry, s.now()) {
		return nil, ErrNotFound
	}
	obj := entry.obj
	return &obj, nil
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if !s.expired(e, now) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(e memoryEntry, now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for ref, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, ref)
		}
	}
}
