package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/sillage/cache"
	"github.com/use-agent/sillage/engine"
	"github.com/use-agent/sillage/models"
)

// fakeFetcher serves canned markup per URL; URLs in failures fail with the
// given error.
type fakeFetcher struct {
	failures map[string]error
	delay    time.Duration

	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newFakeFetcher(failures map[string]error) *fakeFetcher {
	return &fakeFetcher{failures: failures, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[pageURL]++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.failures[pageURL]; ok {
		return "", err
	}
	return productMarkup(pageURL), nil
}

func (f *fakeFetcher) callCount(pageURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pageURL]
}

// productMarkup renders a minimal product page whose title is the URL.
func productMarkup(pageURL string) string {
	return fmt.Sprintf(`<html><body>
<div id="toptop"><h1>%s <small>for men</small></h1></div>
<div class="accord-bar">woody</div>
</body></html>`, pageURL)
}

func urlsN(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://www.fragrantica.com/perfume/House/Scent-%d.html", i)
	}
	return urls
}

func titles(recs []*models.FragranceRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

func TestRun_PartitionsFetchFailures(t *testing.T) {
	urls := urlsN(6)
	fetcher := newFakeFetcher(map[string]error{
		urls[1]: engine.StatusError(404, urls[1]),
		urls[4]: models.NewError(models.ErrCodeTimeout, "timed out", context.DeadlineExceeded),
	})
	r := NewRunner(fetcher, nil, 3)

	resp := r.Run(context.Background(), urls)

	require.Len(t, resp.Results, 4)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, []string{urls[0], urls[2], urls[3], urls[5]}, titles(resp.Results))

	assert.Equal(t, urls[1], resp.Errors[0].URL)
	assert.Equal(t, models.ErrCodeHTTPStatus, resp.Errors[0].Code)
	assert.Contains(t, resp.Errors[0].Error, "404")
	assert.Equal(t, urls[4], resp.Errors[1].URL)
	assert.Equal(t, models.ErrCodeTimeout, resp.Errors[1].Code)

	// No URL shows up on both sides.
	for _, e := range resp.Errors {
		assert.NotContains(t, titles(resp.Results), e.URL)
	}
}

func TestRun_ExtractionErrorsReported(t *testing.T) {
	urls := urlsN(3)
	r := NewRunner(newFakeFetcher(nil), nil, 2)
	r.extract = func(sourceURL, markup string) (*models.FragranceRecord, error) {
		if sourceURL == urls[1] {
			return nil, models.NewError(models.ErrCodeNotAProductPage, "no product heading", nil)
		}
		rec := models.NewFragranceRecord()
		rec.Title = sourceURL
		return rec, nil
	}

	resp := r.Run(context.Background(), urls)
	assert.Equal(t, []string{urls[0], urls[2]}, titles(resp.Results))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, models.ErrCodeNotAProductPage, resp.Errors[0].Code)
}

func TestRun_ExtractorPanicBecomesError(t *testing.T) {
	r := NewRunner(newFakeFetcher(nil), nil, 1)
	r.extract = func(string, string) (*models.FragranceRecord, error) { panic("boom") }

	resp := r.Run(context.Background(), urlsN(1))
	assert.Empty(t, resp.Results)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, models.ErrCodeInternal, resp.Errors[0].Code)
}

func TestRun_DuplicatesProcessedIndependently(t *testing.T) {
	u := urlsN(1)[0]
	fetcher := newFakeFetcher(nil)
	resp := NewRunner(fetcher, nil, 2).Run(context.Background(), []string{u, u})

	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 2, fetcher.callCount(u))
}

func TestRun_EmptyBatch(t *testing.T) {
	resp := NewRunner(newFakeFetcher(nil), nil, 4).Run(context.Background(), nil)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[],"errors":[]}`, string(body))
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	fetcher.delay = 10 * time.Millisecond

	resp := NewRunner(fetcher, nil, 2).Run(context.Background(), urlsN(8))
	assert.Len(t, resp.Results, 8)
	assert.LessOrEqual(t, fetcher.peak.Load(), int32(2))
}

func TestRunCached_ServesFreshRecords(t *testing.T) {
	urls := urlsN(2)
	records := cache.New(10, time.Hour)
	defer records.Stop()
	fetcher := newFakeFetcher(nil)
	r := NewRunner(fetcher, records, 2)

	first := r.RunCached(context.Background(), urls, time.Minute)
	second := r.RunCached(context.Background(), urls, time.Minute)

	assert.Equal(t, titles(first.Results), titles(second.Results))
	assert.Equal(t, 1, fetcher.callCount(urls[0]))
	assert.Equal(t, 1, fetcher.callCount(urls[1]))

	// Without max_age the cache is bypassed but still refreshed.
	r.Run(context.Background(), urls)
	assert.Equal(t, 2, fetcher.callCount(urls[0]))
}

func TestRunCached_FailuresNotCached(t *testing.T) {
	u := urlsN(1)[0]
	records := cache.New(10, time.Hour)
	defer records.Stop()
	fetcher := newFakeFetcher(map[string]error{u: engine.StatusError(503, u)})
	r := NewRunner(fetcher, records, 1)

	r.RunCached(context.Background(), []string{u}, time.Minute)
	r.RunCached(context.Background(), []string{u}, time.Minute)
	assert.Equal(t, 2, fetcher.callCount(u))
	assert.Equal(t, 0, records.Len())
}
