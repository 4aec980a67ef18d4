package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"babylog-backend/config"
	"babylog-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, serverCfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	limit := rate.Limit(10)
	if serverCfg != nil && serverCfg.RateLimitPerSec > 0 {
		limit = rate.Limit(serverCfg.RateLimitPerSec)
	}
	rateLimiter := mw.RateLimiter(limit, 5)

	cacheTTL := 5 * time.Minute
	if serverCfg != nil && serverCfg.CacheTTLSeconds > 0 {
		cacheTTL = time.Duration(serverCfg.CacheTTLSeconds) * time.Second
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Invoked by the external scheduler once per tick.
		api.POST("/notifications/run", h.RunNotifications)

		api.POST("/subscriptions", h.RegisterSubscription)
		api.GET("/subscriptions", h.GetSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", caching, h.GetVAPIDPublicKey)
	}

	return r
}
