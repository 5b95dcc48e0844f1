package storage

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process Store. It is the default driver and what tests use.
type Memory struct {
	mu   sync.Mutex
	data map[string]map[string]memEntry
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]memEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, session, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(session, key)
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, session, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(session, key, value, ttl)
	return nil
}

func (m *Memory) SetNX(_ context.Context, session, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(session, key); ok {
		return false, nil
	}
	m.put(session, key, value, ttl)
	return true, nil
}

func (m *Memory) Delete(_ context.Context, session string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := m.data[session]
	for _, k := range keys {
		delete(bucket, k)
	}
	if len(bucket) == 0 {
		delete(m.data, session)
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// lookup must be called with mu held. Expired entries are dropped on read.
func (m *Memory) lookup(session, key string) (memEntry, bool) {
	bucket := m.data[session]
	e, ok := bucket[key]
	if !ok {
		return memEntry{}, false
	}
	if e.expired(m.now()) {
		delete(bucket, key)
		return memEntry{}, false
	}
	return e, true
}

func (m *Memory) put(session, key, value string, ttl time.Duration) {
	bucket, ok := m.data[session]
	if !ok {
		bucket = make(map[string]memEntry)
		m.data[session] = bucket
	}
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	bucket[key] = e
}
