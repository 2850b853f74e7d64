// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store implementation with TTL expiry. It is
// meant for tests and single-process deployments; cross-process coordination
// requires the Redis store. The clock is injectable so TTL elapse can be
// simulated without sleeping.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time

	// failure, when non-nil, is returned by every operation. It simulates an
	// unreachable store in fail-open tests.
	failure error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock replaces the store clock.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailWith makes every subsequent operation return the given error; nil
// restores normal operation.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// get returns the live entry of the key, dropping it when expired. The mutex
// must be held.
func (s *MemoryStore) get(key string) (memoryEntry, bool) {
	entry, exists := s.entries[key]
	if !exists {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return "", false, UnavailableError{Err: s.failure}
	}
	entry, exists := s.get(key)
	return entry.value, exists, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return UnavailableError{Err: s.failure}
	}
	s.entries[key] = memoryEntry{
		value:     value,
		expiresAt: s.expiry(ttl),
	}
	return nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration, refreshTTL bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return 0, UnavailableError{Err: s.failure}
	}

	entry, exists := s.get(key)
	count := int64(1)
	if exists {
		previous, err := strconv.ParseInt(entry.value, 10, 64)
		if err == nil {
			count = previous + 1
		}
	}

	expiresAt := entry.expiresAt
	if !exists || refreshTTL {
		expiresAt = s.expiry(ttl)
	}
	s.entries[key] = memoryEntry{
		value:     strconv.FormatInt(count, 10),
		expiresAt: expiresAt,
	}
	return count, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return 0, false, UnavailableError{Err: s.failure}
	}
	entry, exists := s.get(key)
	if !exists {
		return 0, false, nil
	}
	if entry.expiresAt.IsZero() {
		return 0, true, nil
	}
	return entry.expiresAt.Sub(s.now()), true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return UnavailableError{Err: s.failure}
	}
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}
