package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// fakeEngine returns scripted outcomes, one per call. The last outcome
// repeats once the script runs out.
type fakeEngine struct {
	name  string
	delay time.Duration

	mu       sync.Mutex
	outcomes []outcome
	calls    atomic.Int32
}

type outcome struct {
	html string
	err  error
}

func newFakeEngine(name string, outcomes ...outcome) *fakeEngine {
	return &fakeEngine{name: name, outcomes: outcomes}
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	n := int(f.calls.Add(1)) - 1

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	o := f.outcomes[min(n, len(f.outcomes)-1)]
	f.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	return &FetchResult{HTML: o.html, StatusCode: 200, FinalURL: req.URL, EngineName: f.name}, nil
}

// blockingEngine waits for ctx to end.
type blockingEngine struct{ calls atomic.Int32 }

func (b *blockingEngine) Name() string { return "blocking" }

func (b *blockingEngine) Fetch(ctx context.Context, _ *FetchRequest) (*FetchResult, error) {
	b.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}
