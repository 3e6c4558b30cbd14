package http

import (
	"time"

	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/http/handlers"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	orderHandler *handlers.OrderHandler,
	checkoutHandler *handlers.CheckoutHandler,
	uploadHandler *handlers.UploadHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/wallet", authHandler.WalletAuth)

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Meta (public, no auth required)
	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/statuses", metaHandler.Statuses)

	// Mirror reads (public)
	api.Get("/transactions", orderHandler.ListTransactions)
	api.Get("/transactions/user/:walletAddress", orderHandler.ListByWallet)
	api.Get("/transactions/:orderId", orderHandler.GetTransaction)
	api.Get("/transactions/:orderId/status", orderHandler.GetTransactionStatus)
	api.Get("/transactions/:orderId/history", orderHandler.GetTransactionHistory)

	// Ledger reads (public, authoritative)
	api.Get("/escrows/:orderId", checkoutHandler.GetEscrow)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Checkout lifecycle (two-step: ledger then mirror)
	protected.Post("/checkout", checkoutHandler.Checkout)
	protected.Post("/checkout/:orderId/pay", checkoutHandler.Pay)
	protected.Post("/checkout/:orderId/deliver", checkoutHandler.Deliver)
	protected.Post("/checkout/:orderId/confirm", checkoutHandler.Confirm)
	protected.Post("/checkout/:orderId/release", checkoutHandler.Release)
	protected.Post("/checkout/:orderId/cancel", checkoutHandler.Cancel)

	// Mirror writes
	protected.Post("/transactions", orderHandler.CreateTransaction)
	protected.Put("/transactions/:orderId", orderHandler.UpdateTransaction)
	protected.Post("/transactions/:orderId/ship", orderHandler.ShipTransaction)
	protected.Post("/transactions/:orderId/cancel", orderHandler.CancelTransaction)

	// Receipt uploads
	protected.Post("/upload/receipt", uploadHandler.UploadReceipt)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
