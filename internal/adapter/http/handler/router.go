package handler

import (
	"payment-status-relay/config"
	"payment-status-relay/internal/adapter/http/middleware"
	redisStore "payment-status-relay/internal/adapter/storage/redis"
	"payment-status-relay/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	ReconcileSvc   ports.ReconciliationService
	ReportingSvc   ports.ReportingService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Admin          config.AdminConfig
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep: verifies PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Provider callback (shared-secret token, validated in the service
	// so every attempt is audited) ---
	webhookHandler := NewWebhookHandler(deps.ReconcileSvc)
	r.POST("/api/forumpay/callback", rl("callback"), webhookHandler.Callback)

	// --- POS read/report endpoints ---
	paymentHandler := NewPaymentHandler(deps.ReconcileSvc, deps.ReportingSvc)
	payments := r.Group("/payments")
	{
		payments.GET("", rl("reports"), paymentHandler.List)
		payments.GET("/:payment_id", rl("reports"), paymentHandler.Get)
		payments.POST("/:payment_id/recheck", rl("recheck"), paymentHandler.Recheck)
	}

	reports := r.Group("/reports")
	{
		reports.GET("/payments.csv", rl("reports"), paymentHandler.ExportCSV)
	}

	// --- Admin audit trail (Basic Auth) ---
	adminHandler := NewAdminHandler(deps.ReportingSvc)
	admin := r.Group("/admin", middleware.AdminBasicAuth(deps.Admin.User, deps.Admin.Password))
	{
		admin.GET("/webhook-events", rl("admin"), adminHandler.ListWebhookEvents)
	}

	return r
}
