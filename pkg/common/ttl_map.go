package common

import (
	"sync"
	"time"
)

type ttlEntry struct {
	value     interface{}
	expiresAt time.Time
}

// TTLMap is a process-local map whose entries expire after a fixed TTL.
// Expired entries are dropped lazily on read and swept by a janitor.
type TTLMap struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry
	ttl     time.Duration
	done    chan struct{}
}

func NewTTLMap(ttl time.Duration) *TTLMap {
	m := &TTLMap{
		entries: make(map[string]ttlEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *TTLMap) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (m *TTLMap) Set(key string, value interface{}) {
	m.mu.Lock()
	m.entries[key] = ttlEntry{value: value, expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()
}

func (m *TTLMap) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *TTLMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *TTLMap) Stop() {
	close(m.done)
}

func (m *TTLMap) janitor() {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			m.mu.Lock()
			for key, entry := range m.entries {
				if now.After(entry.expiresAt) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}
