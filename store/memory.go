package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store implementation. It is the default
// backend for single-process deployments and for tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	sets    map[string]*memorySet
	windows map[string][]time.Time
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// NewMemory creates an in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*memoryEntry),
		sets:    make(map[string]*memorySet),
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// WithClock overrides the time source. Call before first use; intended
// for tests that simulate elapsed time instead of sleeping.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Get retrieves a value. Returns (nil, false, nil) on miss or expiry.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(entry.expiresAt) {
		// Expired - clean up lazily
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a value with the given TTL. TTL <= 0 stores nothing.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	m.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
	m.mu.Unlock()
	return nil
}

// Delete removes keys and reports how many existed.
func (m *Memory) Delete(_ context.Context, keys ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for _, key := range keys {
		if entry, ok := m.entries[key]; ok {
			if !now.After(entry.expiresAt) {
				removed++
			}
			delete(m.entries, key)
		}
		if set, ok := m.sets[key]; ok {
			if !now.After(set.expiresAt) {
				removed++
			}
			delete(m.sets, key)
		}
		if _, ok := m.windows[key]; ok {
			removed++
			delete(m.windows, key)
		}
	}
	return removed, nil
}

// AddToSet adds member to the set at key and refreshes its TTL.
func (m *Memory) AddToSet(_ context.Context, key, member string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	set, ok := m.sets[key]
	if !ok || now.After(set.expiresAt) {
		set = &memorySet{members: make(map[string]struct{})}
		m.sets[key] = set
	}
	set.members[member] = struct{}{}
	set.expiresAt = now.Add(ttl)
	return nil
}

// SetMembers returns the members of the set at key, empty on miss.
func (m *Memory) SetMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		return nil, nil
	}
	if m.now().After(set.expiresAt) {
		delete(m.sets, key)
		return nil, nil
	}
	members := make([]string, 0, len(set.members))
	for member := range set.members {
		members = append(members, member)
	}
	return members, nil
}

// Scan returns every live key with the given prefix.
func (m *Memory) Scan(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var keys []string
	for key, entry := range m.entries {
		if strings.HasPrefix(key, prefix) && !now.After(entry.expiresAt) {
			keys = append(keys, key)
		}
	}
	for key, set := range m.sets {
		if strings.HasPrefix(key, prefix) && !now.After(set.expiresAt) {
			keys = append(keys, key)
		}
	}
	for key := range m.windows {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Admit prunes, counts, and conditionally records one admission under a
// single lock. The mutex makes the sequence atomic per store.
func (m *Memory) Admit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	live := m.pruneLocked(key, now, window)
	if len(live) >= limit {
		m.windows[key] = live
		return false, nil
	}
	m.windows[key] = append(live, now)
	return true, nil
}

// Count returns the number of admissions within the window.
func (m *Memory) Count(_ context.Context, key string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.pruneLocked(key, m.now(), window)
	if len(live) == 0 {
		delete(m.windows, key)
	} else {
		m.windows[key] = live
	}
	return len(live), nil
}

func (m *Memory) pruneLocked(key string, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	stamps := m.windows[key]
	live := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	return live
}

// Ping always succeeds for the in-memory store.
func (m *Memory) Ping(_ context.Context) error { return nil }

// Close releases nothing for the in-memory store.
func (m *Memory) Close() error { return nil }

// Ensure Memory implements Store
var _ Store = (*Memory)(nil)
