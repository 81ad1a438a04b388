package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"server-presence-backend/config"
	"server-presence-backend/internal/metrics"
	"server-presence-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, h *Handler) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Stats only move once per poll cycle, so a short cache is enough.
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 5*time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/sessions/top", caching, h.GetTopSessions)
		api.GET("/online", caching, h.GetRecentOnline)
		api.GET("/online/peak", caching, h.GetPeakOnline)
		api.GET("/worlds", caching, h.GetWorlds)
		api.GET("/digest", caching, h.GetDigest)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
