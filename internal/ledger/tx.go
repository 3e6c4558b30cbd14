package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Tx is a state-changing ledger call. Each variant carries the calling
// account in From; guards are evaluated against it exactly as the escrow
// contract would against msg.sender.
type Tx interface {
	orderID() string
	apply(s *state, now time.Time) (*Escrow, string, error)
}

// CreateEscrow opens a new escrow with From acting as the customer.
type CreateEscrow struct {
	OrderID         string
	From            common.Address
	Seller          common.Address
	OrderFeeNano    int64
	PaymentDeadline int64
}

// PayEscrow deposits exactly the order fee into custody.
type PayEscrow struct {
	OrderID    string
	From       common.Address
	AmountNano int64
}

// DeliverOrder moves the order into delivery and mints the receipt token
// to the customer.
type DeliverOrder struct {
	OrderID  string
	From     common.Address
	TokenID  uint64
	TokenURI string
}

// ConfirmDelivered is the customer acknowledging receipt.
type ConfirmDelivered struct {
	OrderID string
	From    common.Address
}

// ReleaseToSeller pays the custodied fee out to the seller.
type ReleaseToSeller struct {
	OrderID string
	From    common.Address
}

// CancelTransaction cancels per the two allowed paths: customer before
// payment, or seller while funds are deposited (triggering a full refund).
type CancelTransaction struct {
	OrderID string
	From    common.Address
}

func (t CreateEscrow) orderID() string      { return t.OrderID }
func (t PayEscrow) orderID() string         { return t.OrderID }
func (t DeliverOrder) orderID() string      { return t.OrderID }
func (t ConfirmDelivered) orderID() string  { return t.OrderID }
func (t ReleaseToSeller) orderID() string   { return t.OrderID }
func (t CancelTransaction) orderID() string { return t.OrderID }

// Event names emitted with each applied transition.
const (
	EventEscrowCreated     = "NewEscrowCreated"
	EventPaymentSucceeded  = "PaymentSucceeded"
	EventOrderInDelivery   = "OrderInDelivery"
	EventDeliveryConfirmed = "OrderDeliveryConfirmed"
	EventFundsReleased     = "FundsReleasedToSeller"
	EventCanceled          = "TransactionCanceled"
)

func (t CreateEscrow) apply(s *state, now time.Time) (*Escrow, string, error) {
	if _, ok := s.escrows[t.OrderID]; ok {
		return nil, "", ErrOrderExists
	}
	e := &Escrow{
		OrderID:         t.OrderID,
		Customer:        t.From,
		Seller:          t.Seller,
		OrderFeeNano:    t.OrderFeeNano,
		PaymentDeadline: t.PaymentDeadline,
		Status:          StatusAwaitingPayment,
	}
	s.escrows[t.OrderID] = e
	return e, EventEscrowCreated, nil
}

func (t PayEscrow) apply(s *state, now time.Time) (*Escrow, string, error) {
	e, ok := s.escrows[t.OrderID]
	if !ok {
		return nil, "", ErrUnknownOrder
	}
	if e.Customer != t.From {
		return nil, "", ErrNotCustomer
	}
	if e.Status != StatusAwaitingPayment {
		return nil, "", ErrNotPayable
	}
	// Deadline is inclusive: paying at the exact deadline second succeeds.
	if now.Unix() > e.PaymentDeadline {
		return nil, "", ErrOverdue
	}
	if t.AmountNano != e.OrderFeeNano {
		return nil, "", ErrWrongAmount
	}
	e.Status = StatusAwaitingDelivery
	e.FundsDeposited = true
	s.balance += t.AmountNano
	return e, EventPaymentSucceeded, nil
}

func (t DeliverOrder) apply(s *state, now time.Time) (*Escrow, string, error) {
	e, ok := s.escrows[t.OrderID]
	if !ok {
		return nil, "", ErrUnknownOrder
	}
	if e.Seller != t.From {
		return nil, "", ErrNotSeller
	}
	if e.Status != StatusAwaitingDelivery {
		return nil, "", ErrNotAwaitingDelivery
	}
	if t.TokenID == 0 {
		return nil, "", ErrInvalidToken
	}
	if _, minted := s.tokens[t.TokenID]; minted {
		return nil, "", ErrTokenExists
	}
	s.tokens[t.TokenID] = receiptToken{owner: e.Customer, uri: t.TokenURI}
	e.Status = StatusInDelivery
	e.ReceiptTokenID = t.TokenID
	e.ReceiptURI = t.TokenURI
	return e, EventOrderInDelivery, nil
}

func (t ConfirmDelivered) apply(s *state, now time.Time) (*Escrow, string, error) {
	e, ok := s.escrows[t.OrderID]
	if !ok {
		return nil, "", ErrUnknownOrder
	}
	if e.Customer != t.From {
		return nil, "", ErrNotCustomer
	}
	if e.Status != StatusInDelivery {
		return nil, "", ErrNotInDelivery
	}
	e.Status = StatusDelivered
	return e, EventDeliveryConfirmed, nil
}

func (t ReleaseToSeller) apply(s *state, now time.Time) (*Escrow, string, error) {
	e, ok := s.escrows[t.OrderID]
	if !ok {
		return nil, "", ErrUnknownOrder
	}
	if e.Customer != t.From {
		return nil, "", ErrNotCustomer
	}
	if e.Status != StatusDelivered {
		return nil, "", ErrNotDelivered
	}
	e.Status = StatusComplete
	e.FundsDeposited = false
	s.balance -= e.OrderFeeNano
	s.accounts[e.Seller] += e.OrderFeeNano
	return e, EventFundsReleased, nil
}

func (t CancelTransaction) apply(s *state, now time.Time) (*Escrow, string, error) {
	e, ok := s.escrows[t.OrderID]
	if !ok {
		return nil, "", ErrUnknownOrder
	}
	byCustomer := e.Status == StatusAwaitingPayment && t.From == e.Customer
	bySeller := e.Status == StatusAwaitingDelivery && e.FundsDeposited && t.From == e.Seller
	if !byCustomer && !bySeller {
		return nil, "", ErrCancelNotAllowed
	}
	if e.FundsDeposited {
		s.balance -= e.OrderFeeNano
		s.accounts[e.Customer] += e.OrderFeeNano
		e.FundsDeposited = false
	}
	e.Status = StatusCanceled
	e.CanceledBy = t.From
	return e, EventCanceled, nil
}
