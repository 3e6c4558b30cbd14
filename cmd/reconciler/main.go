package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/db"
	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/ledger"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
	"go.uber.org/zap"
)

// The reconciler repairs accepted divergence: mirror records whose status fell
// behind the archived ledger state (a failed step-two write, or an operator
// edit). It never touches the ledger; the archive is the source of truth.
func main() {
	once := flag.Bool("once", false, "run a single reconciliation pass and exit")
	flag.Parse()

	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	orderRepo := repositories.NewOrderRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	if *once {
		runReconcile(ctx, escrowRepo, orderRepo, auditRepo, publisher, log)
		return
	}

	log.Info("reconciler started", zap.Duration("interval", cfg.ReconcileInterval))

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runReconcile(ctx, escrowRepo, orderRepo, auditRepo, publisher, log)
		case <-sigCh:
			log.Info("shutting down reconciler")
			cancel()
			return
		}
	}
}

func runReconcile(
	ctx context.Context,
	escrowRepo *repositories.EscrowRepo,
	orderRepo *repositories.OrderRepo,
	auditRepo *repositories.AuditRepo,
	publisher events.Publisher,
	log *zap.Logger,
) {
	escrows, err := escrowRepo.LoadEscrows(ctx)
	if err != nil {
		log.Error("failed to load escrow archive", zap.Error(err))
		return
	}

	var repaired, skipped int
	for _, esc := range escrows {
		order, err := orderRepo.GetByOrderID(ctx, esc.OrderID)
		if err != nil {
			if errors.Is(err, repositories.ErrOrderNotFound) {
				// Checkout diverged before the mirror record existed.
				log.Warn("escrow has no mirror record", zap.String("order_id", esc.OrderID))
				skipped++
				continue
			}
			log.Error("mirror read failed", zap.String("order_id", esc.OrderID), zap.Error(err))
			continue
		}

		if !mirrorStale(esc, order) {
			continue
		}

		status := esc.Status.String()
		if _, err := orderRepo.Update(ctx, esc.OrderID, repositories.OrderPatch{BlockchainStatus: &status}); err != nil {
			log.Error("mirror repair failed", zap.String("order_id", esc.OrderID), zap.Error(err))
			continue
		}

		orderID := esc.OrderID
		_ = auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "order_reconciled",
			EntityType: "order",
			EntityID:   &orderID,
			Meta: map[string]any{
				"from_status": order.BlockchainStatus,
				"to_status":   status,
			},
		})
		_ = publisher.Publish(ctx, events.StreamOrders, events.Event{
			Type: events.EventOrderReconciled,
			Payload: map[string]any{
				"order_id": esc.OrderID,
				"status":   status,
			},
		})

		log.Info("mirror repaired",
			zap.String("order_id", esc.OrderID),
			zap.String("from", order.BlockchainStatus),
			zap.String("to", status),
		)
		repaired++
	}

	if repaired > 0 || skipped > 0 {
		log.Info("reconciliation pass complete", zap.Int("repaired", repaired), zap.Int("skipped", skipped))
	}
}

// mirrorStale reports whether the mirror status has fallen behind the ledger.
// SHIPPED is a mirror-only refinement of the delivery window, so it is left
// alone while the ledger sits in AWAITING_DELIVERY or IN_DELIVERY.
func mirrorStale(esc ledger.Escrow, order *models.Order) bool {
	if order.BlockchainStatus == esc.Status.String() {
		return false
	}
	if order.BlockchainStatus == models.OrderStatusShipped &&
		(esc.Status == ledger.StatusAwaitingDelivery || esc.Status == ledger.StatusInDelivery) {
		return false
	}
	return true
}
