package ledger

import "errors"

// Guard rejections. Every one of these means the transaction was dropped
// atomically: no state change, no fund movement.
var (
	ErrOrderExists         = errors.New("ledger: order id already exists")
	ErrUnknownOrder        = errors.New("ledger: unknown order id")
	ErrNotCustomer         = errors.New("ledger: caller is not the authorized customer")
	ErrNotSeller           = errors.New("ledger: caller is not the authorized seller")
	ErrNotPayable          = errors.New("ledger: order is not awaiting payment")
	ErrOverdue             = errors.New("ledger: payment deadline has passed")
	ErrWrongAmount         = errors.New("ledger: amount does not match order fee")
	ErrNotAwaitingDelivery = errors.New("ledger: order is not awaiting delivery")
	ErrNotInDelivery       = errors.New("ledger: order is not in delivery")
	ErrNotDelivered        = errors.New("ledger: delivery has not been confirmed")
	ErrCancelNotAllowed    = errors.New("ledger: cancellation not allowed under current conditions or by this caller")
	ErrTokenExists         = errors.New("ledger: receipt token id already minted")
	ErrInvalidToken        = errors.New("ledger: receipt token id must be non-zero")
	ErrUnknownToken        = errors.New("ledger: unknown receipt token id")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("ledger: closed")
)

var guardErrs = []error{
	ErrOrderExists, ErrUnknownOrder, ErrNotCustomer, ErrNotSeller,
	ErrNotPayable, ErrOverdue, ErrWrongAmount, ErrNotAwaitingDelivery,
	ErrNotInDelivery, ErrNotDelivered, ErrCancelNotAllowed,
	ErrTokenExists, ErrInvalidToken,
}

// IsGuardViolation reports whether err is a transition guard rejection, as
// opposed to an infrastructure failure.
func IsGuardViolation(err error) bool {
	for _, g := range guardErrs {
		if errors.Is(err, g) {
			return true
		}
	}
	return false
}
