// Package api wires the gin router for the scrape service.
package api

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/use-agent/sillage/api/handler"
	"github.com/use-agent/sillage/api/middleware"
	"github.com/use-agent/sillage/config"
	"github.com/use-agent/sillage/webhook"
)

// Deps are the services the handlers call into.
type Deps struct {
	Runner    handler.BatchRunner
	Webhooks  *webhook.Sender
	PoolStats handler.PoolStatsFunc
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → RequestID → CORS
//	Scrape:  Auth (if enabled) → RateLimit
//
// Health and info stay outside auth so monitoring probes always work.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(cors.New(corsConfig(cfg.CORS)))

	info := handler.Info()
	r.GET("/", info)

	v1 := r.Group("/api/v1")
	v1.GET("", info)
	v1.GET("/health", handler.Health(deps.PoolStats, cfg.Fetch.Mode, deps.StartTime))

	var guards []gin.HandlerFunc
	if cfg.Auth.Enabled {
		guards = append(guards, middleware.Auth(cfg.Auth.APIKeys))
	}
	guards = append(guards, middleware.RateLimit(cfg.RateLimit))

	scrape := append(guards, handler.Scrape(deps.Runner, deps.Webhooks, cfg.Batch.MaxURLs))
	r.POST("/scrape", scrape...)
	v1.POST("/scrape", scrape...)

	return r
}

// corsConfig allows every origin when the list holds "*".
func corsConfig(cfg config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-API-Key", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.AllowedOrigins
	}
	return cc
}
