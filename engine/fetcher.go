package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Fetcher is the page fetcher used by the batch orchestrator: it wraps an
// Engine with a per-attempt timeout and a bounded retry policy, and
// returns only the page markup.
//
// Every error it returns is a *models.Error with code FETCH_TIMEOUT,
// NAVIGATION_FAILED, HTTP_STATUS or BROWSER_CRASH. Only timeouts and
// navigation failures are retried.
type Fetcher struct {
	engine     Engine
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	stealth    bool
	headers    map[string]string
}

// FetcherOptions configures NewFetcher.
type FetcherOptions struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	Stealth    bool
	Headers    map[string]string
}

// NewFetcher wraps eng.
func NewFetcher(eng Engine, opts FetcherOptions) *Fetcher {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Fetcher{
		engine:     eng,
		timeout:    opts.Timeout,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		stealth:    opts.Stealth,
		headers:    opts.Headers,
	}
}

// EngineName returns the name of the wrapped engine.
func (f *Fetcher) EngineName() string { return f.engine.Name() }

// Fetch returns the rendered markup of pageURL.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	var err error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			slog.Info("retrying fetch",
				"url", pageURL,
				"attempt", attempt+1,
				"previous_error", err,
			)
			if waitErr := sleepCtx(ctx, f.retryDelay); waitErr != nil {
				return "", err
			}
		}

		var markup string
		markup, err = f.attempt(ctx, pageURL)
		if err == nil {
			return markup, nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return "", err
		}
	}
	return "", err
}

func (f *Fetcher) attempt(ctx context.Context, pageURL string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	result, err := f.engine.Fetch(ctx, &FetchRequest{
		URL:     pageURL,
		Headers: f.headers,
		Timeout: f.timeout,
		Stealth: f.stealth,
	})
	if err != nil {
		// A deadline hit inside the engine may surface as a generic
		// transport error; the context tells the truth.
		if ctx.Err() == context.DeadlineExceeded {
			return "", Classify(ctx.Err(), fmt.Sprintf("fetch of %s timed out after %s", pageURL, f.timeout))
		}
		return "", Classify(err, fmt.Sprintf("fetch of %s failed", pageURL))
	}
	return result.HTML, nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
