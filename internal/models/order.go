package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mirror status vocabulary. A superset of the ledger's: SHIPPED is a
// mirror-only refinement the seller sets between payment and delivery
// confirmation; the ledger never carries it.
const (
	OrderStatusAwaitingPayment  = "AWAITING_PAYMENT"
	OrderStatusAwaitingDelivery = "AWAITING_DELIVERY"
	OrderStatusShipped          = "SHIPPED"
	OrderStatusInDelivery       = "IN_DELIVERY"
	OrderStatusDelivered        = "DELIVERED"
	OrderStatusComplete         = "COMPLETE"
	OrderStatusCanceled         = "CANCELED"
	OrderStatusDisputed         = "DISPUTED"
)

var MirrorStatuses = []string{
	OrderStatusAwaitingPayment,
	OrderStatusAwaitingDelivery,
	OrderStatusShipped,
	OrderStatusInDelivery,
	OrderStatusDelivered,
	OrderStatusComplete,
	OrderStatusCanceled,
	OrderStatusDisputed,
}

func IsMirrorStatus(s string) bool {
	for _, v := range MirrorStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Guards for the two specialized mirror transitions. These are the mirror's
// own guard set and are intentionally weaker than the ledger's: the generic
// update path can still move a record to any status regardless of ledger
// state. The reconciler repairs the drift; do not tighten this here.
func CanShip(from string) bool {
	return from == OrderStatusAwaitingDelivery
}

func CanCancel(from string) bool {
	return from == OrderStatusAwaitingPayment || from == OrderStatusAwaitingDelivery
}

// NormalizeWallet lowercases a wallet address for case-insensitive matching.
func NormalizeWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

type OrderItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	PriceETH string `json:"price"` // numeric as string
	Quantity int    `json:"quantity"`
}

// Order is the off-ledger projection of an escrow's lifecycle, keyed by the
// same order id. It is ground truth for listing and filtering only; the
// ledger stays authoritative for custody and transition legality.
type Order struct {
	ID                    uuid.UUID   `json:"id"`
	OrderID               string      `json:"order_id"`
	CustomerWalletAddress string      `json:"customer_wallet_address"`
	SellerWalletAddress   string      `json:"seller_wallet_address"`
	Items                 []OrderItem `json:"items"`
	TotalAmountETH        string      `json:"total_amount_eth"` // numeric as string
	BlockchainStatus      string      `json:"blockchain_status"`
	TrackingNumber        *string     `json:"tracking_number,omitempty"`
	CancelReason          *string     `json:"cancel_reason,omitempty"`
	ShippedAt             *time.Time  `json:"shipped_at,omitempty"`
	CompletedAt           *time.Time  `json:"completed_at,omitempty"`
	CancelledAt           *time.Time  `json:"cancelled_at,omitempty"`
	ReceiptTokenID        *int64      `json:"receipt_token_id,omitempty"`
	ReceiptURI            *string     `json:"receipt_uri,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// StatusSummary is the minimal view served by GET /transactions/:orderId/status.
type StatusSummary struct {
	OrderID          string    `json:"order_id"`
	BlockchainStatus string    `json:"blockchain_status"`
	UpdatedAt        time.Time `json:"updated_at"`
}
