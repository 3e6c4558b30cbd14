package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/db"
	"github.com/escrow-storefront/backend/internal/events"
	apphttp "github.com/escrow-storefront/backend/internal/http"
	"github.com/escrow-storefront/backend/internal/http/handlers"
	"github.com/escrow-storefront/backend/internal/ipfs"
	"github.com/escrow-storefront/backend/internal/ledger"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	orderRepo := repositories.NewOrderRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Ledger: warm start from the archive before serving traffic
	led := ledger.New(ledger.WithArchiver(escrowRepo), ledger.WithLogger(log))
	defer led.Close()
	if err := led.Restore(ctx); err != nil {
		log.Fatal("failed to restore ledger from archive", zap.Error(err))
	}

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	orderService := services.NewOrderService(orderRepo, auditRepo, publisher, log)
	checkoutService := services.NewCheckoutService(led, orderRepo, auditRepo, publisher, log)
	pinClient := ipfs.NewPinClient(cfg.PinataBaseURL, cfg.PinataJWT, cfg.PinataGateway, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	orderHandler := handlers.NewOrderHandler(orderService, log)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, cfg, log)
	uploadHandler := handlers.NewUploadHandler(pinClient, cfg, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, orderHandler, checkoutHandler, uploadHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
