package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	ids       []int64
	groups    map[string]struct{}
	principal string
	expiresAt time.Time
}

// Memory is the in-process VisibleIDs backend. Process-local by design:
// each worker tolerates one TTL of staleness after a change it did not
// observe.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   Clock
	entries map[string]memoryEntry
}

func NewMemory(ttl time.Duration, clock Clock) *Memory {
	return &Memory{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, principalOID, contentType string) ([]int64, bool) {
	m.mu.RLock()
	entry, ok := m.entries[cacheKey(principalOID, contentType)]
	m.mu.RUnlock()
	if !ok || m.clock.Now().After(entry.expiresAt) {
		return nil, false
	}
	out := make([]int64, len(entry.ids))
	copy(out, entry.ids)
	return out, true
}

func (m *Memory) Set(_ context.Context, principalOID, contentType string, groupNames []string, ids []int64) {
	groups := make(map[string]struct{}, len(groupNames))
	for _, g := range groupNames {
		groups[g] = struct{}{}
	}
	stored := make([]int64, len(ids))
	copy(stored, ids)

	m.mu.Lock()
	m.entries[cacheKey(principalOID, contentType)] = memoryEntry{
		ids:       stored,
		groups:    groups,
		principal: principalOID,
		expiresAt: m.clock.Now().Add(m.ttl),
	}
	m.mu.Unlock()
}

func (m *Memory) InvalidatePrincipal(_ context.Context, principalOID string) {
	prefix := principalOID + "\x00"
	m.mu.Lock()
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}

func (m *Memory) InvalidateGroups(_ context.Context, groupNames []string) {
	m.mu.Lock()
	for key, entry := range m.entries {
		for _, g := range groupNames {
			if _, ok := entry.groups[g]; ok {
				delete(m.entries, key)
				break
			}
		}
	}
	m.mu.Unlock()
}
