package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// OrderStatus follows the escrow contract enum; the zero value is
// AWAITING_PAYMENT, so a zero-valued Escrow reads as an unpaid order.
type OrderStatus uint8

const (
	StatusAwaitingPayment OrderStatus = iota
	StatusAwaitingDelivery
	StatusInDelivery
	StatusDelivered
	StatusComplete
	StatusCanceled
	// StatusDisputed is reserved: no transition produces or consumes it.
	StatusDisputed
)

var statusNames = [...]string{
	"AWAITING_PAYMENT",
	"AWAITING_DELIVERY",
	"IN_DELIVERY",
	"DELIVERED",
	"COMPLETE",
	"CANCELED",
	"DISPUTED",
}

func (s OrderStatus) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStatus maps a status name back to its enum value.
func ParseStatus(name string) (OrderStatus, bool) {
	for i, n := range statusNames {
		if n == name {
			return OrderStatus(i), true
		}
	}
	return 0, false
}

// Terminal reports whether no further transition can leave s.
func (s OrderStatus) Terminal() bool {
	return s == StatusComplete || s == StatusCanceled || s == StatusDisputed
}

// Escrow is the on-ledger custody record for one order. All fields except
// CanceledBy, Status, FundsDeposited and the receipt pair are immutable
// after creation.
type Escrow struct {
	OrderID         string         `json:"order_id"`
	Customer        common.Address `json:"customer"`
	Seller          common.Address `json:"seller"`
	CanceledBy      common.Address `json:"canceled_by"`
	OrderFeeNano    int64          `json:"order_fee_nano"`
	PaymentDeadline int64          `json:"payment_deadline"` // unix seconds, inclusive
	Status          OrderStatus    `json:"status"`
	FundsDeposited  bool           `json:"funds_deposited"`
	ReceiptTokenID  uint64         `json:"receipt_token_id,omitempty"`
	ReceiptURI      string         `json:"receipt_uri,omitempty"`
}

type receiptToken struct {
	owner common.Address
	uri   string
}
