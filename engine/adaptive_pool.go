package engine

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Page retirement thresholds.
const (
	retireErrScore = 3.0
	retireUses     = 50
	retireAge      = 50 * time.Minute
)

// PageHandle wraps a pooled resource with health tracking metadata.
//
// A success lowers the error score by 0.5 (never below 0), a failure
// raises it by 1. The page is retired once the score reaches 3, after 50
// uses, or after 50 minutes, whichever comes first.
type PageHandle[T any] struct {
	ID    int64
	Value T

	errScore float64
	useCount int
	created  time.Time
	mu       sync.Mutex
}

// RecordSuccess decreases the error score (min 0).
func (h *PageHandle[T]) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore = math.Max(0, h.errScore-0.5)
}

// RecordFailure increases the error score.
func (h *PageHandle[T]) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore += 1.0
}

// ShouldRetire reports whether the page is unhealthy or worn out.
func (h *PageHandle[T]) ShouldRetire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errScore >= retireErrScore ||
		h.useCount >= retireUses ||
		time.Since(h.created) >= retireAge
}

// AdaptivePoolConfig holds configuration for the adaptive pool.
type AdaptivePoolConfig struct {
	MinPages     int
	HardMax      int
	MemThreshold float64 // 0.0-1.0, heap in-use fraction that triggers shrinking
	ScaleStep    float64 // 0.0-1.0, fraction to grow or shrink per check
}

// PageFactory creates a new pooled resource.
type PageFactory[T any] func() (T, error)

// PageDestroyer releases a pooled resource.
type PageDestroyer[T any] func(T)

// AdaptivePool keeps between MinPages and HardMax browser pages open,
// growing under load and shrinking under memory pressure.
type AdaptivePool[T any] struct {
	cfg       AdaptivePoolConfig
	factory   PageFactory[T]
	destroyer PageDestroyer[T]

	idle     chan *PageHandle[T]
	mu       sync.Mutex
	all      map[int64]*PageHandle[T]
	nextID   atomic.Int64
	active   atomic.Int32
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewAdaptivePool creates and starts an adaptive pool, pre-creating
// MinPages resources. Pages that fail to open are logged and skipped.
func NewAdaptivePool[T any](cfg AdaptivePoolConfig, factory PageFactory[T], destroyer PageDestroyer[T]) *AdaptivePool[T] {
	if cfg.MinPages < 1 {
		cfg.MinPages = 1
	}
	if cfg.HardMax < cfg.MinPages {
		cfg.HardMax = cfg.MinPages
	}
	if cfg.MemThreshold <= 0 {
		cfg.MemThreshold = 0.9
	}
	if cfg.ScaleStep <= 0 {
		cfg.ScaleStep = 0.05
	}

	ap := &AdaptivePool[T]{
		cfg:       cfg,
		factory:   factory,
		destroyer: destroyer,
		idle:      make(chan *PageHandle[T], cfg.HardMax),
		all:       make(map[int64]*PageHandle[T]),
		stopped:   make(chan struct{}),
	}

	for i := 0; i < cfg.MinPages; i++ {
		h, err := ap.createHandle()
		if err != nil {
			slog.Warn("adaptive_pool: failed to pre-create page", "error", err)
			continue
		}
		ap.idle <- h
	}

	go ap.scalingLoop(10 * time.Second)
	return ap
}

// Get acquires a page. It creates a new one while under HardMax, and
// otherwise blocks until a page is returned or ctx is done.
func (ap *AdaptivePool[T]) Get(ctx context.Context) (*PageHandle[T], error) {
	select {
	case h := <-ap.idle:
		ap.active.Add(1)
		return h, nil
	default:
	}

	ap.mu.Lock()
	if len(ap.all) < ap.cfg.HardMax {
		h, err := ap.createHandleLocked()
		ap.mu.Unlock()
		if err == nil {
			ap.active.Add(1)
			return h, nil
		}
		slog.Warn("adaptive_pool: failed to open page, waiting for an idle one", "error", err)
	} else {
		ap.mu.Unlock()
	}

	select {
	case h := <-ap.idle:
		ap.active.Add(1)
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a page to the pool. A page that should be retired is
// destroyed, and replaced if the pool fell below MinPages.
func (ap *AdaptivePool[T]) Put(h *PageHandle[T], success bool) {
	ap.active.Add(-1)

	if success {
		h.RecordSuccess()
	} else {
		h.RecordFailure()
	}

	if !h.ShouldRetire() {
		ap.idle <- h
		return
	}

	slog.Debug("adaptive_pool: retiring page", "id", h.ID)
	ap.destroyHandle(h)

	ap.mu.Lock()
	defer ap.mu.Unlock()
	if len(ap.all) < ap.cfg.MinPages {
		if fresh, err := ap.createHandleLocked(); err == nil {
			ap.idle <- fresh
		}
	}
}

// Size returns the total number of live pages.
func (ap *AdaptivePool[T]) Size() int {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return len(ap.all)
}

// ActiveCount returns the number of checked-out pages.
func (ap *AdaptivePool[T]) ActiveCount() int {
	return int(ap.active.Load())
}

// MaxSize returns the configured hard maximum.
func (ap *AdaptivePool[T]) MaxSize() int {
	return ap.cfg.HardMax
}

// Stop halts scaling and destroys every page.
func (ap *AdaptivePool[T]) Stop() {
	ap.stopOnce.Do(func() {
		close(ap.stopped)

	drain:
		for {
			select {
			case h := <-ap.idle:
				ap.destroyHandle(h)
			default:
				break drain
			}
		}

		ap.mu.Lock()
		for id, h := range ap.all {
			ap.destroyer(h.Value)
			delete(ap.all, id)
		}
		ap.mu.Unlock()
	})
}

func (ap *AdaptivePool[T]) createHandle() (*PageHandle[T], error) {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.createHandleLocked()
}

// createHandleLocked opens a new page. Caller must hold ap.mu.
func (ap *AdaptivePool[T]) createHandleLocked() (*PageHandle[T], error) {
	v, err := ap.factory()
	if err != nil {
		return nil, err
	}
	h := &PageHandle[T]{
		ID:      ap.nextID.Add(1),
		Value:   v,
		created: time.Now(),
	}
	ap.all[h.ID] = h
	return h, nil
}

func (ap *AdaptivePool[T]) destroyHandle(h *PageHandle[T]) {
	ap.mu.Lock()
	delete(ap.all, h.ID)
	ap.mu.Unlock()
	ap.destroyer(h.Value)
}

func (ap *AdaptivePool[T]) scalingLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ap.stopped:
			return
		case <-ticker.C:
			ap.scaleCheck(heapPressure())
		}
	}
}

// heapPressure estimates memory pressure as HeapInuse / HeapSys.
func heapPressure() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapSys == 0 {
		return 0
	}
	return float64(m.HeapInuse) / float64(m.HeapSys)
}

// scaleCheck shrinks idle pages under memory pressure, or grows the pool
// when more than 80% of pages are checked out.
func (ap *AdaptivePool[T]) scaleCheck(memPressure float64) {
	ap.mu.Lock()
	totalSize := len(ap.all)
	ap.mu.Unlock()

	var activeRate float64
	if totalSize > 0 {
		activeRate = float64(ap.active.Load()) / float64(totalSize)
	}
	step := int(math.Ceil(float64(totalSize) * ap.cfg.ScaleStep))

	switch {
	case memPressure > ap.cfg.MemThreshold:
		for i := 0; i < step; i++ {
			if ap.Size() <= ap.cfg.MinPages {
				return
			}
			select {
			case h := <-ap.idle:
				slog.Debug("adaptive_pool: shrinking, retiring page", "id", h.ID)
				ap.destroyHandle(h)
			default:
				return
			}
		}
	case activeRate > 0.8:
		for i := 0; i < step; i++ {
			ap.mu.Lock()
			if len(ap.all) >= ap.cfg.HardMax {
				ap.mu.Unlock()
				return
			}
			h, err := ap.createHandleLocked()
			ap.mu.Unlock()
			if err != nil {
				slog.Warn("adaptive_pool: failed to grow", "error", err)
				return
			}
			slog.Debug("adaptive_pool: grew pool", "id", h.ID)
			ap.idle <- h
		}
	}
}
