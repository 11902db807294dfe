package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/sillage/engine"
	"github.com/use-agent/sillage/models"
)

// Render loads req.URL in a pooled tab and returns the rendered DOM.
// It has the engine.RodFetchFunc signature.
//
// Lifecycle:
//
//  1. Timeout guard      – hard deadline on the whole render
//  2. Acquire page       – borrow a tab from the adaptive pool
//  3. DEFER: cleanup     – about:blank + return to pool with the outcome
//  4. Stealth injection  – mask navigator.webdriver etc.
//  5. Headers            – Google referer plus caller headers
//  6. Hijack mount       – block images, CSS, fonts, media and ads
//  7. Navigate           – bounded by NavigationTimeout
//  8. Wait               – DOM stable
//  9. Status check       – non-200 document status fails the render
//  10. Extract           – page.HTML() + document.title
//
// Steps 4-6 must happen before step 7: stealth JS and request interception
// only apply to navigations started after they are installed. Cleanup uses
// the page without the request context so it still runs after a timeout.
func (s *Scraper) Render(ctx context.Context, req *engine.FetchRequest) (result *engine.FetchResult, err error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.fetchCfg.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// ── 2. Acquire page ───────────────────────────────────────────────
	handle, err := s.pool.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, engine.Classify(ctx.Err(), "timed out waiting for a browser page")
		}
		return nil, models.NewError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}
	page := handle.Value

	// ── 3. Cleanup ────────────────────────────────────────────────────
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		// Status errors are the site's answer, not a sign of a bad tab.
		healthy := err == nil || models.CodeOf(err) == models.ErrCodeHTTPStatus
		s.pool.Put(handle, healthy)
	}()

	// ── 4. Stealth injection ──────────────────────────────────────────
	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	// ── 5. Headers and cookies ────────────────────────────────────────
	if headers := extraHeaders(req); len(headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)
	}
	for _, cookie := range req.Cookies {
		domain := cookie.Domain
		if domain == "" {
			if u, parseErr := url.Parse(req.URL); parseErr == nil {
				domain = u.Host
			}
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: domain,
			Path:   path,
		}.Call(page)
	}

	// ── 6. Hijack mount ───────────────────────────────────────────────
	if router := setupHijack(page, s.policy); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// ── 7. Navigate ───────────────────────────────────────────────────
	nav := p
	if s.fetchCfg.NavigationTimeout > 0 {
		nav = p.Timeout(s.fetchCfg.NavigationTimeout)
	}
	if navErr := nav.Navigate(req.URL); navErr != nil {
		return nil, engine.Classify(navErr, fmt.Sprintf("navigation to %s failed", req.URL))
	}

	// ── 8. Wait ───────────────────────────────────────────────────────
	// WaitRequestIdle conflicts with HijackRequests on recent Chromium.
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		if ctx.Err() != nil {
			return nil, engine.Classify(ctx.Err(), fmt.Sprintf("render of %s timed out", req.URL))
		}
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}

	// ── 9. Status check ───────────────────────────────────────────────
	// Read from the navigation timing entry: listening for
	// NetworkResponseReceived breaks request hijacking on Chromium 145+.
	statusCode := navigationStatus(p)
	if statusCode != 0 && statusCode != 200 {
		return nil, engine.StatusError(statusCode, req.URL)
	}

	if s.fetchCfg.RemoveOverlays {
		removeOverlays(p)
	}

	// ── 10. Extract ───────────────────────────────────────────────────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, engine.Classify(htmlErr, "failed to read page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}
	if statusCode == 0 {
		statusCode = 200
	}

	return &engine.FetchResult{
		HTML:       rawHTML,
		Title:      evalStringOrEmpty(p, `() => document.title`),
		StatusCode: statusCode,
		FinalURL:   finalURL,
		EngineName: "rod",
	}, nil
}

// extraHeaders returns the caller headers plus a Google search Referer
// unless the caller set one.
func extraHeaders(req *engine.FetchRequest) map[string]string {
	headers := make(map[string]string, len(req.Headers)+1)
	if _, ok := req.Headers["Referer"]; !ok {
		if u, err := url.Parse(req.URL); err == nil && u.Hostname() != "" {
			headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	return headers
}

// navigationStatus returns the HTTP status of the main document, or 0 when
// the browser does not expose it.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders
// (map[string]gson.JSON).
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// removeOverlays removes fixed or sticky elements with a high z-index,
// which on product pages are cookie consent banners and sign-up popups.
func removeOverlays(p *rod.Page) {
	const js = `() => {
		for (const el of document.querySelectorAll('body *')) {
			const style = window.getComputedStyle(el);
			if (style.position !== 'fixed' && style.position !== 'sticky') continue;
			const z = parseInt(style.zIndex, 10);
			if (z >= 900) el.remove();
		}
		const selectors = [
			'[class*="cookie"]', '[id*="cookie"]',
			'[class*="consent"]', '[id*="consent"]',
			'[class*="gdpr"]', '[id*="gdpr"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const pos = window.getComputedStyle(el).position;
				if (pos === 'fixed' || pos === 'sticky') el.remove();
			});
		}
		document.documentElement.style.overflow = '';
		document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}
