// Package cache provides caching implementations for gatekeeper check results.
package cache

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xraph/gatekeeper"
)

// Compile-time interface check.
var _ gatekeeper.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration.
type Memory struct {
	mu      sync.RWMutex
	entries map[key]*entry
	ttl     time.Duration
	maxSize int
}

// key identifies one decision. Roles are part of the key because they
// change which permissions match.
type key struct {
	anonymous bool
	subjectID string
	roles     string
	method    string
	kind      string
	resource  string
}

type entry struct {
	result    *gatekeeper.CheckResult
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[key]*entry),
		ttl:     30 * time.Second,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a cached check result.
func (m *Memory) Get(_ context.Context, subject *gatekeeper.Subject, path gatekeeper.ParsedPath) (*gatekeeper.CheckResult, bool) {
	k := cacheKey(subject, path)
	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, k)
		m.mu.Unlock()
		return nil, false
	}
	return e.result, true
}

// Set stores a check result in the cache.
func (m *Memory) Set(_ context.Context, subject *gatekeeper.Subject, path gatekeeper.ParsedPath, result *gatekeeper.CheckResult) {
	k := cacheKey(subject, path)
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[k]; !exists && len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[k] = &entry{
		result:    result,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// InvalidateAll removes every cached result.
func (m *Memory) InvalidateAll(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}

// InvalidateSubject removes all cached results for one subject.
func (m *Memory) InvalidateSubject(_ context.Context, subjectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if !k.anonymous && k.subjectID == subjectID {
			delete(m.entries, k)
		}
	}
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cacheKey(subject *gatekeeper.Subject, path gatekeeper.ParsedPath) key {
	k := key{
		anonymous: subject == nil,
		method:    path.Method,
		kind:      string(path.Kind),
		resource:  path.ResourceID.String(),
	}
	if subject != nil {
		k.subjectID = subject.ID
		roles := slices.Clone(subject.Roles)
		slices.Sort(roles)
		k.roles = joinRoles(slices.Compact(roles))
	}
	return k
}

// joinRoles length-prefixes each role so no role text can mimic a list.
func joinRoles(roles []string) string {
	var b strings.Builder
	for _, r := range roles {
		b.WriteString(strconv.Itoa(len(r)))
		b.WriteByte(':')
		b.WriteString(r)
	}
	return b.String()
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
