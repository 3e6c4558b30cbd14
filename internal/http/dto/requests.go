package dto

import (
	"time"

	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
)

type AuthWalletRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type CheckoutRequest struct {
	OrderID             string             `json:"order_id,omitempty"` // generated when empty
	SellerWalletAddress string             `json:"seller_wallet_address"`
	Items               []models.OrderItem `json:"items"`
	TotalAmountETH      string             `json:"total_amount_eth"`
	OrderFeeNano        int64              `json:"order_fee_nano"`
	PaymentDeadline     *int64             `json:"payment_deadline,omitempty"` // unix seconds, inclusive
}

type PayRequest struct {
	AmountNano int64 `json:"amount_nano"`
}

type DeliverRequest struct {
	TokenID    uint64 `json:"token_id"`
	ReceiptURI string `json:"receipt_uri"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

type CreateTransactionRequest struct {
	OrderID               string             `json:"order_id"`
	CustomerWalletAddress string             `json:"customer_wallet_address"`
	SellerWalletAddress   string             `json:"seller_wallet_address"`
	Items                 []models.OrderItem `json:"items"`
	TotalAmountETH        string             `json:"total_amount_eth"`
	BlockchainStatus      string             `json:"blockchain_status,omitempty"`
}

// UpdateTransactionRequest is the typed partial-merge body for the generic
// update route. Absent fields are left untouched.
type UpdateTransactionRequest struct {
	BlockchainStatus *string            `json:"blockchain_status,omitempty"`
	TotalAmountETH   *string            `json:"total_amount_eth,omitempty"`
	Items            []models.OrderItem `json:"items,omitempty"`
	TrackingNumber   *string            `json:"tracking_number,omitempty"`
	CancelReason     *string            `json:"cancel_reason,omitempty"`
	ShippedAt        *time.Time         `json:"shipped_at,omitempty"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
	ReceiptTokenID   *int64             `json:"receipt_token_id,omitempty"`
	ReceiptURI       *string            `json:"receipt_uri,omitempty"`
}

func (r UpdateTransactionRequest) ToPatch() repositories.OrderPatch {
	return repositories.OrderPatch{
		BlockchainStatus: r.BlockchainStatus,
		TotalAmountETH:   r.TotalAmountETH,
		Items:            r.Items,
		TrackingNumber:   r.TrackingNumber,
		CancelReason:     r.CancelReason,
		ShippedAt:        r.ShippedAt,
		CompletedAt:      r.CompletedAt,
		CancelledAt:      r.CancelledAt,
		ReceiptTokenID:   r.ReceiptTokenID,
		ReceiptURI:       r.ReceiptURI,
	}
}

type ShipTransactionRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

type CancelTransactionRequest struct {
	Reason     string `json:"reason,omitempty"`
	HardDelete bool   `json:"hard_delete,omitempty"`
}
