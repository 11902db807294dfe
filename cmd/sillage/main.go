package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/sillage/api"
	"github.com/use-agent/sillage/api/handler"
	"github.com/use-agent/sillage/batch"
	"github.com/use-agent/sillage/cache"
	"github.com/use-agent/sillage/config"
	"github.com/use-agent/sillage/engine"
	"github.com/use-agent/sillage/scraper"
	"github.com/use-agent/sillage/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("sillage starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"fetchMode", cfg.Fetch.Mode,
	)

	// ── 3. Fetch stack (launches the browser unless mode is http) ───
	stack, err := newFetchStack(cfg)
	if err != nil {
		slog.Error("failed to initialise fetch stack", "error", err)
		os.Exit(1)
	}
	defer stack.close()

	fetcher := engine.NewFetcher(stack.engine, engine.FetcherOptions{
		Timeout:    cfg.Fetch.Timeout,
		Retries:    cfg.Fetch.Retries,
		RetryDelay: cfg.Fetch.RetryDelay,
		Stealth:    cfg.Fetch.Stealth,
	})
	slog.Info("page fetcher ready", "engine", fetcher.EngineName(), "retries", cfg.Fetch.Retries)

	// ── 4. Cache and batch runner ───────────────────────────────────
	records := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer records.Stop()
	runner := batch.NewRunner(fetcher, records, cfg.Batch.Concurrency)

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(cfg, api.Deps{
		Runner:    runner,
		Webhooks:  webhook.NewSender(cfg.Webhook.Secret),
		PoolStats: stack.stats,
		StartTime: time.Now(),
	})

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// stack.close() runs via defer and kills Chrome.
	slog.Info("sillage stopped")
}

// fetchStack is the engine chosen by the fetch mode plus what it owns.
type fetchStack struct {
	engine engine.Engine
	stats  handler.PoolStatsFunc
	close  func()
}

// newFetchStack builds the engine for cfg.Fetch.Mode:
//
//	http     plain HTTP only, no browser
//	browser  headless Chrome only
//	auto     race http → rod → rod-stealth with staged escalation
func newFetchStack(cfg *config.Config) (*fetchStack, error) {
	httpEngine := engine.NewHTTPEngine(engine.HTTPEngineOptions{
		Proxy:          cfg.Browser.DefaultProxy,
		EscalateShells: cfg.Fetch.Mode == config.FetchModeAuto,
	})

	switch cfg.Fetch.Mode {
	case config.FetchModeHTTP:
		return &fetchStack{engine: httpEngine, close: func() {}}, nil
	case config.FetchModeBrowser, config.FetchModeAuto:
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", cfg.Fetch.Mode)
	}

	sc, err := scraper.NewScraper(cfg.Browser, cfg.Pool, cfg.Fetch)
	if err != nil {
		return nil, err
	}

	if cfg.Fetch.Mode == config.FetchModeBrowser {
		return &fetchStack{
			engine: engine.NewRodEngine(sc.Render, cfg.Fetch.Stealth),
			stats:  sc.Stats,
			close:  sc.Close,
		}, nil
	}

	memory := engine.NewDomainMemory(cfg.Fetch.DomainMemoryTTL)
	engines := []engine.Engine{
		httpEngine,
		engine.NewRodEngine(sc.Render, false),
		engine.NewRodEngine(sc.Render, true),
	}
	slog.Info("multi-engine dispatcher enabled",
		"engines", len(engines),
		"delays", cfg.Fetch.EscalationDelays,
	)
	return &fetchStack{
		engine: engine.NewDispatcher(engines, cfg.Fetch.EscalationDelays, memory),
		stats:  sc.Stats,
		close: func() {
			memory.Stop()
			sc.Close()
		},
	}, nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
