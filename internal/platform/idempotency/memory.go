package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps keys in process memory. It backs the memory store backend and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Claim implements Store.
func (s *MemoryStore) Claim(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if ok && !expired(entry, now) {
		if entry.Fingerprint != fingerprint {
			return Claim{}, ErrKeyReused
		}
		if entry.State == StateDone {
			return Claim{Outcome: OutcomeReplay, Entry: entry}, nil
		}
		return Claim{Outcome: OutcomeInFlight, Entry: entry}, nil
	}

	entry = Entry{
		Key:         key,
		Fingerprint: fingerprint,
		State:       StatePending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	s.entries[id] = entry
	return Claim{Outcome: OutcomeFresh, Entry: entry}, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	switch {
	case !ok:
		entry = Entry{Key: key, Fingerprint: fingerprint, CreatedAt: now}
	case entry.Fingerprint != fingerprint:
		return ErrKeyReused
	}
	entry.State = StateDone
	entry.Status = resp.Status
	entry.Header = replayableHeader(resp.Header)
	entry.Body = append([]byte(nil), resp.Body...)
	entry.ExpiresAt = now.Add(ttl)
	s.entries[id] = entry
	return nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, documentID(key))
	s.mu.Unlock()
	return nil
}

// Purge implements Store.
func (s *MemoryStore) Purge(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if limit > 0 && removed >= limit {
			break
		}
		if expired(entry, now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored keys, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
