package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/integration-hub/internal/api/handlers"
	"github.com/rail-service/integration-hub/internal/api/middleware"
	"github.com/rail-service/integration-hub/internal/infrastructure/di"
)

// SetupRoutes wires every handler from the container onto a fresh gin
// engine. Route grouping mirrors the hub's trust boundary: unauthenticated
// health/metrics, bearer-gated wallet ingress and admin, optionally
// signature-checked external callbacks.
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()
	router.SetTrustedProxies(nil)

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.InputValidation())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(container.Config.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	core := handlers.NewCoreHandlers(container.DB, container.Logger)
	router.GET("/health", core.Health)
	router.GET("/ready", core.Ready)
	router.GET("/live", core.Live)
	router.GET("/version", core.Version)
	router.GET("/metrics", core.Metrics)

	bearerToken := container.Config.Security.BearerToken
	hmacSecret := container.Config.Security.HMACSecret
	maxSkew := time.Duration(container.Config.Security.TimestampSkewSeconds) * time.Second

	wallet := router.Group("/wallet")
	wallet.Use(middleware.BearerAuth(bearerToken))
	wallet.Use(middleware.HeaderSignatureVerify(hmacSecret, maxSkew))
	wallet.Use(middleware.TieredRateLimit(container.TieredRateLimiter, "wallet"))
	wallet.Use(container.IdempotencyMiddleware())
	{
		wallet.POST("/:action", container.WalletHandlers.HandleWalletAction)
	}

	webhooks := router.Group("/webhooks")
	{
		incoming := webhooks.Group("/")
		incoming.Use(middleware.HeaderSignatureVerify(hmacSecret, maxSkew))
		incoming.Use(middleware.TieredRateLimit(container.TieredRateLimiter, "webhooks_incoming"))
		incoming.POST("/incoming", container.WebhookHandlers.HandleIncoming)

		outbox := webhooks.Group("/")
		outbox.Use(middleware.BearerAuth(bearerToken))
		outbox.GET("/outbox", container.AdminHandlers.HandleListOutbox)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.BearerAuth(bearerToken))
	admin.Use(middleware.AuditContext())
	{
		admin.POST("/replay/:queue/:recordId", container.AdminHandlers.HandleReplay)
		admin.POST("/clear-db", container.AdminHandlers.HandleClearDB)
	}

	router.GET("/reconciliation_data", middleware.BearerAuth(bearerToken), container.ReconciliationHandlers.HandleReconciliationData)

	return router
}
