package sessionspan

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Cache with timer-based sweeping.
// Suitable for single-instance deployments and tests; multi-instance
// deployments should use Redis so all instances agree on session parentage.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

type memoryEntry struct {
	exported  string
	expiresAt time.Time
}

// NewMemory creates a memory cache sweeping expired entries every
// sweepInterval; non-positive intervals fall back to one minute. Call Stop
// to release the sweeper goroutine.
func NewMemory(sweepInterval time.Duration) *Memory {
	return NewMemoryWithClock(sweepInterval, time.Now)
}

// NewMemoryWithClock is NewMemory with an injectable time source, letting
// tests step through TTL expiry without sleeping.
func NewMemoryWithClock(sweepInterval time.Duration, now func() time.Time) *Memory {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     now,
		done:    make(chan struct{}),
	}
	go m.sweepLoop(sweepInterval)
	return m
}

// Get returns the handle for the session. Expired entries are treated as
// absent even before the sweeper removes them.
func (m *Memory) Get(_ context.Context, sessionID string) (string, error) {
	m.mu.RLock()
	entry, ok := m.entries[sessionID]
	m.mu.RUnlock()

	if !ok || m.now().After(entry.expiresAt) {
		return "", nil
	}
	return entry.exported, nil
}

// Set stores the handle and refreshes its TTL.
func (m *Memory) Set(_ context.Context, sessionID, exported string, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[sessionID] = memoryEntry{
		exported:  exported,
		expiresAt: m.now().Add(ttl),
	}
	m.mu.Unlock()
	return nil
}

// Stop terminates the sweeper goroutine. Safe to call multiple times.
func (m *Memory) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *Memory) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	now := m.now()
	m.mu.Lock()
	for id, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()
}
