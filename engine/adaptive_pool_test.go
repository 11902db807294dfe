package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPages counts resources opened and closed by a pool.
type testPages struct {
	mu      sync.Mutex
	opened  int
	closed  []int
	failing bool
}

func (p *testPages) open() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing {
		return 0, errors.New("browser gone")
	}
	p.opened++
	return p.opened, nil
}

func (p *testPages) close(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, v)
}

func (p *testPages) closedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.closed)
}

func newTestPool(t *testing.T, cfg AdaptivePoolConfig) (*AdaptivePool[int], *testPages) {
	t.Helper()
	pages := &testPages{}
	pool := NewAdaptivePool(cfg, pages.open, pages.close)
	t.Cleanup(pool.Stop)
	return pool, pages
}

func TestAdaptivePool_PreCreatesMinPages(t *testing.T) {
	pool, pages := newTestPool(t, AdaptivePoolConfig{MinPages: 2, HardMax: 4})
	assert.Equal(t, 2, pool.Size())
	assert.Equal(t, 2, pages.opened)
	assert.Equal(t, 4, pool.MaxSize())
}

func TestAdaptivePool_GetPut(t *testing.T) {
	pool, _ := newTestPool(t, AdaptivePoolConfig{MinPages: 1, HardMax: 2})
	ctx := context.Background()

	h1, err := pool.Get(ctx)
	require.NoError(t, err)
	h2, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, h1.ID, h2.ID)
	assert.Equal(t, 2, pool.ActiveCount())
	assert.Equal(t, 2, pool.Size())

	pool.Put(h1, true)
	pool.Put(h2, true)
	assert.Equal(t, 0, pool.ActiveCount())
}

func TestAdaptivePool_GetBlocksAtHardMax(t *testing.T) {
	pool, _ := newTestPool(t, AdaptivePoolConfig{MinPages: 1, HardMax: 1})

	h, err := pool.Get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Put(h, true)
	h2, err := pool.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.ID, h2.ID)
	pool.Put(h2, true)
}

func TestAdaptivePool_RetiresFailingPage(t *testing.T) {
	pool, pages := newTestPool(t, AdaptivePoolConfig{MinPages: 1, HardMax: 1})
	ctx := context.Background()

	var first int64
	for i := 0; i < 3; i++ {
		h, err := pool.Get(ctx)
		require.NoError(t, err)
		if i == 0 {
			first = h.ID
		}
		assert.Equal(t, first, h.ID)
		pool.Put(h, false)
	}

	assert.Equal(t, 1, pages.closedCount())
	assert.Equal(t, 1, pool.Size(), "retired page is replaced to keep MinPages")

	h, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, h.ID)
	pool.Put(h, true)
}

func TestAdaptivePool_SuccessHealsScore(t *testing.T) {
	h := &PageHandle[int]{created: time.Now()}
	h.RecordFailure()
	h.RecordFailure()
	h.RecordSuccess()
	h.RecordSuccess()
	h.RecordFailure()
	assert.False(t, h.ShouldRetire())
	h.RecordFailure()
	h.RecordFailure()
	assert.True(t, h.ShouldRetire())
}

func TestAdaptivePool_RetiresOldOrWornPages(t *testing.T) {
	old := &PageHandle[int]{created: time.Now().Add(-retireAge)}
	assert.True(t, old.ShouldRetire())

	worn := &PageHandle[int]{created: time.Now(), useCount: retireUses}
	assert.True(t, worn.ShouldRetire())
}

func TestAdaptivePool_ScaleCheck(t *testing.T) {
	pool, _ := newTestPool(t, AdaptivePoolConfig{MinPages: 2, HardMax: 4, ScaleStep: 0.5, MemThreshold: 0.9})
	ctx := context.Background()

	h1, _ := pool.Get(ctx)
	h2, _ := pool.Get(ctx)
	pool.scaleCheck(0.1)
	assert.Equal(t, 3, pool.Size(), "fully busy pool grows by one step")

	pool.Put(h1, true)
	pool.Put(h2, true)
	pool.scaleCheck(0.95)
	assert.Equal(t, 2, pool.Size(), "memory pressure shrinks idle pages down to MinPages")
}

func TestAdaptivePool_FactoryFailureWaitsForIdlePage(t *testing.T) {
	pool, pages := newTestPool(t, AdaptivePoolConfig{MinPages: 1, HardMax: 2})

	h, err := pool.Get(context.Background())
	require.NoError(t, err)

	pages.mu.Lock()
	pages.failing = true
	pages.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Put(h, true)
	again, err := pool.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.ID, again.ID)
	pool.Put(again, true)
}

func TestAdaptivePool_StopClosesEverything(t *testing.T) {
	pages := &testPages{}
	pool := NewAdaptivePool(AdaptivePoolConfig{MinPages: 3, HardMax: 3}, pages.open, pages.close)

	h, err := pool.Get(context.Background())
	require.NoError(t, err)
	_ = h

	pool.Stop()
	assert.Equal(t, 3, pages.closedCount())
	assert.Equal(t, 0, pool.Size())
	assert.NotPanics(t, pool.Stop)
}
