package sessionspan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newFrozenMemory returns a memory cache with a controllable clock and no
// running sweeper.
func newFrozenMemory(t *testing.T) (*Memory, *time.Time) {
	t.Helper()

	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	m := NewMemory(time.Hour)
	t.Cleanup(m.Stop)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemory_GetSet(t *testing.T) {
	m, _ := newFrozenMemory(t)
	ctx := context.Background()

	got, err := m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, got, "absent session must read as empty")

	require.NoError(t, m.Set(ctx, "s-1", "00-abc-def-01", DefaultTTL))

	got, err = m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "00-abc-def-01", got)
}

func TestMemory_ExpiryWithoutSweep(t *testing.T) {
	m, now := newFrozenMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "s-1", "handle", 30*time.Minute))

	*now = now.Add(29 * time.Minute)
	got, err := m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "handle", got, "entry inside TTL must survive")

	// Expiry is enforced on read even though the sweeper has not run.
	*now = now.Add(2 * time.Minute)
	got, err = m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, got, "entry past TTL must read as absent")
}

func TestMemory_SetRefreshesTTL(t *testing.T) {
	m, now := newFrozenMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "s-1", "first", 30*time.Minute))

	*now = now.Add(20 * time.Minute)
	require.NoError(t, m.Set(ctx, "s-1", "second", 30*time.Minute))

	// 40 minutes after the first write, 20 after the refresh.
	*now = now.Add(20 * time.Minute)
	got, err := m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestMemory_SweepRemovesExpired(t *testing.T) {
	m, now := newFrozenMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "stale", "h1", time.Minute))
	require.NoError(t, m.Set(ctx, "fresh", "h2", time.Hour))

	*now = now.Add(10 * time.Minute)
	m.sweep()

	m.mu.RLock()
	_, staleExists := m.entries["stale"]
	_, freshExists := m.entries["fresh"]
	m.mu.RUnlock()

	assert.False(t, staleExists, "sweep must remove expired entries")
	assert.True(t, freshExists, "sweep must keep live entries")
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Stop()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Set(ctx, "shared", "handle", time.Minute)
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Get(ctx, "shared")
		}()
	}
	wg.Wait()
}

func TestMemory_StopIsIdempotent(t *testing.T) {
	m := NewMemory(time.Hour)
	m.Stop()
	m.Stop()
}
