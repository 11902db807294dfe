// Package scraper renders product pages in headless Chrome.
//
// A single browser process is shared by all requests. Tabs come from an
// adaptive pool that grows under load, shrinks under memory pressure and
// retires tabs that keep failing.
package scraper

import (
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/sillage/config"
	"github.com/use-agent/sillage/engine"
	"github.com/use-agent/sillage/models"
)

// Scraper manages the browser lifecycle and the page pool.
// It is safe for concurrent use.
type Scraper struct {
	browser    *rod.Browser
	pool       *engine.AdaptivePool[*rod.Page]
	browserCfg config.BrowserConfig
	fetchCfg   config.FetchConfig
	policy     blockPolicy
	startTime  time.Time
}

// NewScraper launches a headless browser and opens the page pool.
func NewScraper(browserCfg config.BrowserConfig, poolCfg config.PoolConfig, fetchCfg config.FetchConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// Stealth flags.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	s := &Scraper{
		browser:    browser,
		browserCfg: browserCfg,
		fetchCfg:   fetchCfg,
		policy:     newBlockPolicy(fetchCfg.BlockedResourceTypes, fetchCfg.BlockAds),
		startTime:  time.Now(),
	}
	s.pool = engine.NewAdaptivePool(
		engine.AdaptivePoolConfig{
			MinPages:     poolCfg.MinPages,
			HardMax:      poolCfg.HardMax,
			MemThreshold: poolCfg.MemThreshold,
			ScaleStep:    poolCfg.ScaleStep,
		},
		s.openPage,
		closePage,
	)
	slog.Info("page pool created", "minPages", poolCfg.MinPages, "maxPages", poolCfg.HardMax)
	return s, nil
}

func (s *Scraper) openPage() (*rod.Page, error) {
	return s.browser.Page(proto.TargetCreateTarget{})
}

func closePage(p *rod.Page) {
	if err := p.Close(); err != nil {
		slog.Debug("closing pooled page failed", "error", err)
	}
}

// Stats returns a snapshot of the pool's current state.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    s.pool.MaxSize(),
		LivePages:   s.pool.Size(),
		ActivePages: s.pool.ActiveCount(),
	}
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pool.Stop()
	slog.Info("scraper shutting down: closing browser")
	if err := s.browser.Close(); err != nil {
		slog.Warn("closing browser failed", "error", err)
	}
	slog.Info("scraper shutdown complete")
}
