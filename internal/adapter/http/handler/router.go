package handler

import (
	"net/http"

	"vendor-payout-ledger/internal/adapter/http/middleware"
	"vendor-payout-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger         ports.LedgerService
	Payouts        ports.PayoutService
	Configs        ports.ConfigurationService
	Vendors        ports.VendorDirectoryService
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	MetricsHandler http.Handler // nil = /metrics disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
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

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.Ledger)
	payoutHandler := NewPayoutHandler(deps.Payouts)
	configHandler := NewConfigHandler(deps.Configs)
	vendorHandler := NewVendorHandler(deps.Vendors)

	v1 := r.Group("/api/v1", jwtAuth)

	// --- Vendor routes ---
	vendor := v1.Group("", middleware.RequireRole(ports.RoleVendor))
	{
		vendor.GET("/wallet/balance", rl("vendor_read"), walletHandler.GetBalance)
		vendor.GET("/wallet/transactions", rl("vendor_read"), walletHandler.ListTransactions)
		vendor.POST("/payouts", rl("payout_create"), payoutHandler.Create)
		vendor.GET("/payouts", rl("vendor_read"), payoutHandler.List)
		vendor.GET("/payouts/:id", rl("vendor_read"), payoutHandler.Get)
	}

	// --- Admin routes ---
	admin := v1.Group("/admin", middleware.RequireRole(ports.RoleAdmin))
	{
		payouts := admin.Group("/payouts")
		payouts.GET("", rl("admin_read"), payoutHandler.AdminList)
		payouts.GET("/:id", rl("admin_read"), payoutHandler.AdminGet)
		payouts.GET("/:id/audit", rl("admin_read"), payoutHandler.AuditTrail)
		payouts.POST("/:id/approve", rl("admin_write"), payoutHandler.Approve)
		payouts.POST("/:id/reject", rl("admin_write"), payoutHandler.Reject)
		payouts.POST("/:id/processing", rl("admin_write"), payoutHandler.MarkProcessing)
		payouts.POST("/:id/paid", rl("admin_write"), payoutHandler.MarkPaid)
		payouts.POST("/:id/failed", rl("admin_write"), payoutHandler.MarkFailed)

		config := admin.Group("/payout-config")
		config.GET("", rl("admin_read"), configHandler.Get)
		config.PUT("", rl("admin_write"), configHandler.Update)
		config.GET("/history", rl("admin_read"), configHandler.History)

		wallets := admin.Group("/wallets/:vendor_id")
		wallets.GET("", rl("admin_read"), walletHandler.VendorBalance)
		wallets.GET("/reconcile", rl("admin_read"), walletHandler.Reconcile)
		wallets.POST("/credit", rl("admin_write"), walletHandler.Credit)
		wallets.POST("/debit", rl("admin_write"), walletHandler.Debit)

		vendors := admin.Group("/vendors/:vendor_id")
		vendors.PUT("/payment-methods/:method_id", rl("admin_write"), vendorHandler.SyncPaymentMethod)
		vendors.GET("/payment-methods/:method_id", rl("admin_read"), vendorHandler.GetPaymentMethod)
		vendors.PUT("/kyc", rl("admin_write"), vendorHandler.SetKYCStatus)
	}

	return r
}
