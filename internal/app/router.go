package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"taxibot/internal/handler"
	"taxibot/internal/middleware"
)

// RouterDeps holds everything the HTTP router needs.
type RouterDeps struct {
	Webhook       *handler.WebhookHandler
	RedisClient   *redis.Client
	NewRelicApp   *newrelic.Application
	WebhookSecret string
}

// NewRouter builds the gin engine: health endpoint plus the Telegram
// webhook route guarded by the secret token and update dedupe.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	webhook := router.Group("/telegram")
	if deps.WebhookSecret != "" {
		webhook.Use(secretTokenMiddleware(deps.WebhookSecret))
	}
	if deps.RedisClient != nil {
		webhook.Use(middleware.UpdateDedupeMiddleware(deps.RedisClient))
	}
	webhook.POST("/webhook", deps.Webhook.Handle)

	return router
}

// secretTokenMiddleware rejects webhook calls that do not carry the secret
// registered with setWebhook.
func secretTokenMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
