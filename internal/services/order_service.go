package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
	"go.uber.org/zap"
)

// Mirror-side guard rejections for the specialized transition endpoints.
var (
	ErrShipNotAllowed         = errors.New("order can only be shipped while awaiting delivery")
	ErrMirrorCancelNotAllowed = errors.New("order can only be cancelled while awaiting payment or awaiting delivery")
)

// OrderService owns the mirror projection: queries plus the mirror's own
// transitions. Its guard set is weaker than the ledger's on purpose — the
// generic update path accepts any status regardless of ledger state, and
// the reconciler repairs drift afterwards.
type OrderService struct {
	orders    OrderStore
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewOrderService(orders OrderStore, audit AuditStore, publisher events.Publisher, log *zap.Logger) *OrderService {
	return &OrderService{orders: orders, audit: audit, publisher: publisher, log: log}
}

func (s *OrderService) List(ctx context.Context, limit, offset int) ([]models.Order, error) {
	return s.orders.List(ctx, limit, offset)
}

func (s *OrderService) ListByWallet(ctx context.Context, wallet string) ([]models.Order, error) {
	return s.orders.ListByWallet(ctx, wallet)
}

func (s *OrderService) Get(ctx context.Context, orderID string) (*models.Order, error) {
	return s.orders.GetByOrderID(ctx, orderID)
}

func (s *OrderService) GetStatus(ctx context.Context, orderID string) (*models.StatusSummary, error) {
	o, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &models.StatusSummary{
		OrderID:          o.OrderID,
		BlockchainStatus: o.BlockchainStatus,
		UpdatedAt:        o.UpdatedAt,
	}, nil
}

// History returns the audit trail for an order: mirror-side actions plus the
// ledger transitions recorded under the escrow entity.
func (s *OrderService) History(ctx context.Context, orderID string, limit, offset int) ([]models.AuditLog, error) {
	if _, err := s.orders.GetByOrderID(ctx, orderID); err != nil {
		return nil, err
	}
	orderLogs, err := s.audit.GetByEntity(ctx, "order", orderID, limit, offset)
	if err != nil {
		return nil, err
	}
	escrowLogs, err := s.audit.GetByEntity(ctx, "escrow", orderID, limit, offset)
	if err != nil {
		return nil, err
	}
	return append(orderLogs, escrowLogs...), nil
}

func (s *OrderService) Create(ctx context.Context, o *models.Order) error {
	if o.BlockchainStatus == "" {
		o.BlockchainStatus = models.OrderStatusAwaitingPayment
	}
	if !models.IsMirrorStatus(o.BlockchainStatus) {
		return fmt.Errorf("unknown blockchain status %q", o.BlockchainStatus)
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return err
	}

	wallet := models.NormalizeWallet(o.CustomerWalletAddress)
	_ = s.audit.Log(ctx, models.AuditLog{
		ActorWallet: &wallet,
		ActorType:   "customer",
		Action:      "order_created",
		EntityType:  "order",
		EntityID:    &o.OrderID,
		Meta:        map[string]any{"total_amount_eth": o.TotalAmountETH},
	})
	return nil
}

// Update is the generic merge path. It validates field types and the status
// vocabulary but deliberately performs no transition check against either
// the mirror's or the ledger's current state.
func (s *OrderService) Update(ctx context.Context, orderID string, patch repositories.OrderPatch) (*models.Order, error) {
	if patch.BlockchainStatus != nil && !models.IsMirrorStatus(*patch.BlockchainStatus) {
		return nil, fmt.Errorf("unknown blockchain status %q", *patch.BlockchainStatus)
	}
	order, err := s.orders.Update(ctx, orderID, patch)
	if err != nil {
		return nil, err
	}
	s.publishStatus(ctx, order)
	return order, nil
}

// Ship moves the mirror record to SHIPPED. Guarded: only from
// AWAITING_DELIVERY.
func (s *OrderService) Ship(ctx context.Context, orderID, trackingNumber string) (*models.Order, error) {
	o, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanShip(o.BlockchainStatus) {
		return nil, fmt.Errorf("%w (current status %s)", ErrShipNotAllowed, o.BlockchainStatus)
	}

	now := time.Now()
	status := models.OrderStatusShipped
	order, err := s.orders.Update(ctx, orderID, repositories.OrderPatch{
		BlockchainStatus: &status,
		TrackingNumber:   &trackingNumber,
		ShippedAt:        &now,
	})
	if err != nil {
		return nil, err
	}

	wallet := order.SellerWalletAddress
	_ = s.audit.Log(ctx, models.AuditLog{
		ActorWallet: &wallet,
		ActorType:   "seller",
		Action:      "order_shipped",
		EntityType:  "order",
		EntityID:    &order.OrderID,
		Meta:        map[string]any{"tracking_number": trackingNumber},
	})
	s.publishStatus(ctx, order)
	return order, nil
}

// Cancel flips the mirror record to CANCELED, or hard-deletes it. Guarded:
// only from AWAITING_PAYMENT or AWAITING_DELIVERY.
func (s *OrderService) Cancel(ctx context.Context, orderID, reason string, hardDelete bool) (*models.Order, error) {
	o, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanCancel(o.BlockchainStatus) {
		return nil, fmt.Errorf("%w (current status %s)", ErrMirrorCancelNotAllowed, o.BlockchainStatus)
	}

	wallet := o.CustomerWalletAddress
	if hardDelete {
		if err := s.orders.Delete(ctx, orderID); err != nil {
			return nil, err
		}
		_ = s.audit.Log(ctx, models.AuditLog{
			ActorWallet: &wallet,
			ActorType:   "customer",
			Action:      "order_deleted",
			EntityType:  "order",
			EntityID:    &orderID,
			Meta:        map[string]any{"reason": reason},
		})
		return nil, nil
	}

	now := time.Now()
	status := models.OrderStatusCanceled
	patch := repositories.OrderPatch{
		BlockchainStatus: &status,
		CancelledAt:      &now,
	}
	if reason != "" {
		patch.CancelReason = &reason
	}
	order, err := s.orders.Update(ctx, orderID, patch)
	if err != nil {
		return nil, err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorWallet: &wallet,
		ActorType:   "customer",
		Action:      "order_cancelled",
		EntityType:  "order",
		EntityID:    &order.OrderID,
		Meta:        map[string]any{"reason": reason},
	})
	s.publishStatus(ctx, order)
	return order, nil
}

func (s *OrderService) publishStatus(ctx context.Context, o *models.Order) {
	_ = s.publisher.Publish(ctx, events.StreamOrders, events.Event{
		Type: events.EventOrderStatusChanged,
		Payload: map[string]any{
			"order_id": o.OrderID,
			"status":   o.BlockchainStatus,
		},
	})
}
