// Package batch runs the fetch-then-extract pipeline over a list of URLs.
//
// Every URL yields exactly one outcome: a record in Results or an entry in
// Errors. A failing URL never stops the others, and both lists keep the
// order in which the URLs were given.
package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/sillage/cache"
	"github.com/use-agent/sillage/extractor"
	"github.com/use-agent/sillage/models"
)

// PageFetcher returns the rendered markup of a product page. Errors carry
// a fetch code (see engine.Fetcher).
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// ExtractFunc turns markup into a record; extractor.Extract in production.
type ExtractFunc func(sourceURL, markup string) (*models.FragranceRecord, error)

// Runner processes batches with bounded concurrency.
type Runner struct {
	fetcher     PageFetcher
	extract     ExtractFunc
	cache       *cache.Cache
	concurrency int
}

// NewRunner creates a Runner. records may be nil to disable caching.
func NewRunner(fetcher PageFetcher, records *cache.Cache, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		fetcher:     fetcher,
		extract:     extractor.Extract,
		cache:       records,
		concurrency: concurrency,
	}
}

// outcome is the result slot for one input URL.
type outcome struct {
	record *models.FragranceRecord
	err    error
}

// Run processes urls without consulting the cache.
func (r *Runner) Run(ctx context.Context, urls []string) *models.ScrapeResponse {
	return r.RunCached(ctx, urls, 0)
}

// RunCached processes urls, serving records younger than maxAge from the
// cache. Successful extractions are always stored.
func (r *Runner) RunCached(ctx context.Context, urls []string, maxAge time.Duration) *models.ScrapeResponse {
	start := time.Now()
	slots := make([]outcome, len(urls))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			slots[i] = r.one(ctx, u, maxAge)
			return nil
		})
	}
	_ = g.Wait()

	resp := &models.ScrapeResponse{
		Results: make([]*models.FragranceRecord, 0, len(urls)),
		Errors:  make([]models.ScrapeError, 0),
	}
	for i, o := range slots {
		if o.err != nil {
			resp.Errors = append(resp.Errors, models.NewScrapeError(urls[i], o.err))
			continue
		}
		resp.Results = append(resp.Results, o.record)
	}

	slog.Info("batch complete",
		"urls", len(urls),
		"results", len(resp.Results),
		"errors", len(resp.Errors),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return resp
}

// one runs the pipeline for a single URL.
func (r *Runner) one(ctx context.Context, pageURL string, maxAge time.Duration) outcome {
	key := cache.Key(pageURL)
	if r.cache != nil {
		if rec, ok := r.cache.Get(key, maxAge); ok {
			slog.Debug("cache hit", "url", pageURL)
			return outcome{record: rec}
		}
	}

	markup, err := r.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		slog.Debug("fetch failed", "url", pageURL, "code", models.CodeOf(err), "error", err)
		return outcome{err: err}
	}

	rec, err := r.safeExtract(pageURL, markup)
	if err != nil {
		slog.Debug("extraction failed", "url", pageURL, "code", models.CodeOf(err), "error", err)
		return outcome{err: err}
	}

	if r.cache != nil {
		r.cache.Set(key, rec)
	}
	slog.Debug("extracted", "url", pageURL, "title", rec.Title)
	return outcome{record: rec}
}

// safeExtract turns a panic escaping the extractor into an error so one bad
// page cannot take the batch down.
func (r *Runner) safeExtract(pageURL, markup string) (rec *models.FragranceRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("extractor panicked", "url", pageURL, "panic", p)
			rec, err = nil, models.NewError(models.ErrCodeInternal, "extraction failed unexpectedly", nil)
		}
	}()
	return r.extract(pageURL, markup)
}
