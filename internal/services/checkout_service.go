package services

import (
	"context"
	"fmt"
	"time"

	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/ledger"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DivergenceError reports a partial success: the ledger transition was
// finalized but the mirror write failed. The ledger is not rolled back and
// nothing is auto-retried; the caller may retry the mirror update, or the
// reconciler will repair it from the archive.
type DivergenceError struct {
	OrderID      string
	LedgerStatus ledger.OrderStatus
	Err          error
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("order %s: ledger advanced to %s but mirror update failed: %v",
		e.OrderID, e.LedgerStatus, e.Err)
}

func (e *DivergenceError) Unwrap() error { return e.Err }

// CheckoutInput describes a new order: escrow terms plus the cart snapshot
// that only the mirror keeps.
type CheckoutInput struct {
	OrderID         string
	Customer        common.Address
	Seller          common.Address
	OrderFeeNano    int64
	PaymentDeadline int64 // unix seconds, inclusive
	Items           []models.OrderItem
	TotalAmountETH  string
}

// CheckoutService drives every lifecycle transition through the two-step
// protocol: (1) submit the ledger transaction, (2) await finality, (3) on
// success push the new state into the mirror. A ledger rejection leaves the
// mirror untouched; a mirror failure after ledger success surfaces as a
// *DivergenceError.
type CheckoutService struct {
	ledger    *ledger.Ledger
	orders    OrderStore
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewCheckoutService(l *ledger.Ledger, orders OrderStore, audit AuditStore, publisher events.Publisher, log *zap.Logger) *CheckoutService {
	return &CheckoutService{ledger: l, orders: orders, audit: audit, publisher: publisher, log: log}
}

// Checkout creates the escrow on the ledger and then the mirror record.
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (*models.Order, error) {
	res, err := s.submit(ctx, ledger.CreateEscrow{
		OrderID:         in.OrderID,
		From:            in.Customer,
		Seller:          in.Seller,
		OrderFeeNano:    in.OrderFeeNano,
		PaymentDeadline: in.PaymentDeadline,
	}, in.Customer, "customer")
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderID:               in.OrderID,
		CustomerWalletAddress: models.NormalizeWallet(in.Customer.Hex()),
		SellerWalletAddress:   models.NormalizeWallet(in.Seller.Hex()),
		Items:                 in.Items,
		TotalAmountETH:        in.TotalAmountETH,
		BlockchainStatus:      res.Escrow.Status.String(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, s.diverged(ctx, in.OrderID, res.Escrow.Status, err)
	}
	s.publishStatus(ctx, order)
	return order, nil
}

// Pay deposits the order fee, then mirrors AWAITING_DELIVERY.
func (s *CheckoutService) Pay(ctx context.Context, orderID string, from common.Address, amountNano int64) (*models.Order, error) {
	res, err := s.submit(ctx, ledger.PayEscrow{OrderID: orderID, From: from, AmountNano: amountNano}, from, "customer")
	if err != nil {
		return nil, err
	}
	_ = s.publisher.Publish(ctx, events.StreamOrders, events.Event{
		Type:    events.EventPaymentReceived,
		Payload: map[string]any{"order_id": orderID, "amount_nano": amountNano},
	})
	return s.sync(ctx, res, repositories.OrderPatch{})
}

// Deliver marks the order in delivery, carrying the freshly minted receipt
// token onto the mirror record.
func (s *CheckoutService) Deliver(ctx context.Context, orderID string, from common.Address, tokenID uint64, tokenURI string) (*models.Order, error) {
	res, err := s.submit(ctx, ledger.DeliverOrder{OrderID: orderID, From: from, TokenID: tokenID, TokenURI: tokenURI}, from, "seller")
	if err != nil {
		return nil, err
	}
	receiptID := int64(tokenID)
	return s.sync(ctx, res, repositories.OrderPatch{
		ReceiptTokenID: &receiptID,
		ReceiptURI:     &tokenURI,
	})
}

// Confirm is the customer acknowledging delivery.
func (s *CheckoutService) Confirm(ctx context.Context, orderID string, from common.Address) (*models.Order, error) {
	res, err := s.submit(ctx, ledger.ConfirmDelivered{OrderID: orderID, From: from}, from, "customer")
	if err != nil {
		return nil, err
	}
	return s.sync(ctx, res, repositories.OrderPatch{})
}

// Release pays the seller out and completes the order.
func (s *CheckoutService) Release(ctx context.Context, orderID string, from common.Address) (*models.Order, error) {
	res, err := s.submit(ctx, ledger.ReleaseToSeller{OrderID: orderID, From: from}, from, "customer")
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return s.sync(ctx, res, repositories.OrderPatch{CompletedAt: &now})
}

// Cancel runs the on-chain cancellation (either party, per the ledger's
// guards) and mirrors the terminal state.
func (s *CheckoutService) Cancel(ctx context.Context, orderID string, from common.Address, reason string) (*models.Order, error) {
	actorType := "customer"
	if esc := s.ledger.GetEscrow(orderID); esc.Seller == from {
		actorType = "seller"
	}
	res, err := s.submit(ctx, ledger.CancelTransaction{OrderID: orderID, From: from}, from, actorType)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	patch := repositories.OrderPatch{CancelledAt: &now}
	if reason != "" {
		patch.CancelReason = &reason
	}
	return s.sync(ctx, res, patch)
}

// GetEscrow reads the authoritative record, zero-valued if unknown.
func (s *CheckoutService) GetEscrow(orderID string) ledger.Escrow {
	return s.ledger.GetEscrow(orderID)
}

// submit runs steps (1) and (2): ledger transaction plus finality wait.
func (s *CheckoutService) submit(ctx context.Context, tx ledger.Tx, from common.Address, actorType string) (*ledger.Result, error) {
	pending, err := s.ledger.Submit(ctx, tx)
	if err != nil {
		return nil, err
	}
	res, err := pending.Wait(ctx)
	if err != nil {
		return nil, err
	}

	wallet := models.NormalizeWallet(from.Hex())
	orderID := res.Escrow.OrderID
	_ = s.audit.Log(ctx, models.AuditLog{
		ActorWallet: &wallet,
		ActorType:   actorType,
		Action:      res.Event,
		EntityType:  "escrow",
		EntityID:    &orderID,
		Meta: map[string]any{
			"tx_hash": res.TxHash.Hex(),
			"status":  res.Escrow.Status.String(),
		},
	})
	return res, nil
}

// sync is step (3): push the finalized ledger state into the mirror.
func (s *CheckoutService) sync(ctx context.Context, res *ledger.Result, patch repositories.OrderPatch) (*models.Order, error) {
	status := res.Escrow.Status.String()
	patch.BlockchainStatus = &status

	order, err := s.orders.Update(ctx, res.Escrow.OrderID, patch)
	if err != nil {
		return nil, s.diverged(ctx, res.Escrow.OrderID, res.Escrow.Status, err)
	}
	s.publishStatus(ctx, order)
	return order, nil
}

func (s *CheckoutService) diverged(ctx context.Context, orderID string, status ledger.OrderStatus, cause error) error {
	s.log.Error("mirror update failed after ledger finality",
		zap.String("order_id", orderID),
		zap.String("ledger_status", status.String()),
		zap.Error(cause),
	)
	_ = s.publisher.Publish(ctx, events.StreamOrders, events.Event{
		Type: events.EventMirrorDiverged,
		Payload: map[string]any{
			"order_id":      orderID,
			"ledger_status": status.String(),
		},
	})
	return &DivergenceError{OrderID: orderID, LedgerStatus: status, Err: cause}
}

func (s *CheckoutService) publishStatus(ctx context.Context, o *models.Order) {
	_ = s.publisher.Publish(ctx, events.StreamOrders, events.Event{
		Type: events.EventOrderStatusChanged,
		Payload: map[string]any{
			"order_id": o.OrderID,
			"status":   o.BlockchainStatus,
		},
	})
}
