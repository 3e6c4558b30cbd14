package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	customer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	seller   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	stranger = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

const (
	testFee      = int64(1_500_000_000) // 1.5 ETH in nano
	testDeadline = int64(1_000_000)
)

// fixedClock pins the ledger clock well before testDeadline.
func fixedClock() time.Time { return time.Unix(testDeadline-100, 0) }

func newTestLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	l := New(append([]Option{WithClock(fixedClock)}, opts...)...)
	t.Cleanup(l.Close)
	return l
}

func mustApply(t *testing.T, l *Ledger, tx Tx) *Result {
	t.Helper()
	p, err := l.Submit(context.Background(), tx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("apply %T: %v", tx, err)
	}
	return res
}

func mustFail(t *testing.T, l *Ledger, tx Tx, want error) {
	t.Helper()
	p, err := l.Submit(context.Background(), tx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := p.Wait(context.Background()); !errors.Is(err, want) {
		t.Fatalf("apply %T: got %v, want %v", tx, err, want)
	}
}

func createTx(orderID string) CreateEscrow {
	return CreateEscrow{
		OrderID:         orderID,
		From:            customer,
		Seller:          seller,
		OrderFeeNano:    testFee,
		PaymentDeadline: testDeadline,
	}
}

func TestHappyPathRelease(t *testing.T) {
	l := newTestLedger(t)

	res := mustApply(t, l, createTx("order-1"))
	if res.Event != EventEscrowCreated {
		t.Errorf("event = %s, want %s", res.Event, EventEscrowCreated)
	}
	if res.Escrow.Status != StatusAwaitingPayment {
		t.Errorf("status = %s, want AWAITING_PAYMENT", res.Escrow.Status)
	}

	res = mustApply(t, l, PayEscrow{OrderID: "order-1", From: customer, AmountNano: testFee})
	if res.Event != EventPaymentSucceeded {
		t.Errorf("event = %s, want %s", res.Event, EventPaymentSucceeded)
	}
	if !res.Escrow.FundsDeposited {
		t.Error("funds not marked deposited after payment")
	}
	if got := l.Balance(); got != testFee {
		t.Errorf("custodied balance = %d, want %d", got, testFee)
	}

	res = mustApply(t, l, DeliverOrder{OrderID: "order-1", From: seller, TokenID: 7, TokenURI: "ipfs://receipt-1"})
	if res.Event != EventOrderInDelivery {
		t.Errorf("event = %s, want %s", res.Event, EventOrderInDelivery)
	}
	owner, err := l.OwnerOf(7)
	if err != nil {
		t.Fatalf("OwnerOf: %v", err)
	}
	if owner != customer {
		t.Errorf("token owner = %s, want customer", owner.Hex())
	}
	if uri, _ := l.TokenURI(7); uri != "ipfs://receipt-1" {
		t.Errorf("token uri = %q", uri)
	}

	mustApply(t, l, ConfirmDelivered{OrderID: "order-1", From: customer})

	res = mustApply(t, l, ReleaseToSeller{OrderID: "order-1", From: customer})
	if res.Event != EventFundsReleased {
		t.Errorf("event = %s, want %s", res.Event, EventFundsReleased)
	}
	if res.Escrow.Status != StatusComplete {
		t.Errorf("status = %s, want COMPLETE", res.Escrow.Status)
	}
	if got := l.Balance(); got != 0 {
		t.Errorf("custodied balance after release = %d, want 0", got)
	}
	if got := l.BalanceOf(seller); got != testFee {
		t.Errorf("seller payout = %d, want %d", got, testFee)
	}
}

func TestSellerCancelRefundsCustomer(t *testing.T) {
	l := newTestLedger(t)

	mustApply(t, l, createTx("order-2"))
	mustApply(t, l, PayEscrow{OrderID: "order-2", From: customer, AmountNano: testFee})

	res := mustApply(t, l, CancelTransaction{OrderID: "order-2", From: seller})
	if res.Event != EventCanceled {
		t.Errorf("event = %s, want %s", res.Event, EventCanceled)
	}
	if res.Escrow.Status != StatusCanceled {
		t.Errorf("status = %s, want CANCELED", res.Escrow.Status)
	}
	if res.Escrow.CanceledBy != seller {
		t.Errorf("canceled_by = %s, want seller", res.Escrow.CanceledBy.Hex())
	}
	if res.Escrow.FundsDeposited {
		t.Error("funds still marked deposited after refund")
	}
	if got := l.Balance(); got != 0 {
		t.Errorf("custodied balance after refund = %d, want 0", got)
	}
	if got := l.BalanceOf(customer); got != testFee {
		t.Errorf("customer refund = %d, want %d", got, testFee)
	}
}

func TestCustomerCancelBeforePayment(t *testing.T) {
	l := newTestLedger(t)

	mustApply(t, l, createTx("order-3"))
	res := mustApply(t, l, CancelTransaction{OrderID: "order-3", From: customer})
	if res.Escrow.Status != StatusCanceled {
		t.Errorf("status = %s, want CANCELED", res.Escrow.Status)
	}
	if got := l.BalanceOf(customer); got != 0 {
		t.Errorf("refund without deposit = %d, want 0", got)
	}
}

func TestCreateGuards(t *testing.T) {
	l := newTestLedger(t)
	mustApply(t, l, createTx("dup"))
	mustFail(t, l, createTx("dup"), ErrOrderExists)
}

func TestPayGuards(t *testing.T) {
	tests := []struct {
		name string
		tx   PayEscrow
		want error
	}{
		{"unknown order", PayEscrow{OrderID: "nope", From: customer, AmountNano: testFee}, ErrUnknownOrder},
		{"wrong caller", PayEscrow{OrderID: "pay", From: stranger, AmountNano: testFee}, ErrNotCustomer},
		{"wrong amount low", PayEscrow{OrderID: "pay", From: customer, AmountNano: testFee - 1}, ErrWrongAmount},
		{"wrong amount high", PayEscrow{OrderID: "pay", From: customer, AmountNano: testFee + 1}, ErrWrongAmount},
	}

	l := newTestLedger(t)
	mustApply(t, l, createTx("pay"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustFail(t, l, tt.tx, tt.want)
		})
	}

	// Caller precedence: a stranger with a wrong amount is reported as a
	// caller violation, not an amount violation.
	mustFail(t, l, PayEscrow{OrderID: "pay", From: stranger, AmountNano: 1}, ErrNotCustomer)

	mustApply(t, l, PayEscrow{OrderID: "pay", From: customer, AmountNano: testFee})
	mustFail(t, l, PayEscrow{OrderID: "pay", From: customer, AmountNano: testFee}, ErrNotPayable)
}

func TestPayDeadlineInclusive(t *testing.T) {
	// Paying at the exact deadline second succeeds; one second later fails.
	clock := time.Unix(testDeadline, 0)
	l := New(WithClock(func() time.Time { return clock }))
	defer l.Close()

	mustApply(t, l, createTx("on-time"))
	mustApply(t, l, PayEscrow{OrderID: "on-time", From: customer, AmountNano: testFee})

	clock = time.Unix(testDeadline+1, 0)
	mustApply(t, l, createTx("late"))
	mustFail(t, l, PayEscrow{OrderID: "late", From: customer, AmountNano: testFee}, ErrOverdue)
}

func TestDeliverGuards(t *testing.T) {
	l := newTestLedger(t)
	mustApply(t, l, createTx("del"))

	mustFail(t, l, DeliverOrder{OrderID: "del", From: seller, TokenID: 1, TokenURI: "u"}, ErrNotAwaitingDelivery)

	mustApply(t, l, PayEscrow{OrderID: "del", From: customer, AmountNano: testFee})

	mustFail(t, l, DeliverOrder{OrderID: "del", From: customer, TokenID: 1, TokenURI: "u"}, ErrNotSeller)
	mustFail(t, l, DeliverOrder{OrderID: "del", From: seller, TokenID: 0, TokenURI: "u"}, ErrInvalidToken)
	mustFail(t, l, DeliverOrder{OrderID: "missing", From: seller, TokenID: 1, TokenURI: "u"}, ErrUnknownOrder)
}

func TestDuplicateTokenRejectsAtomically(t *testing.T) {
	l := newTestLedger(t)

	mustApply(t, l, createTx("a"))
	mustApply(t, l, PayEscrow{OrderID: "a", From: customer, AmountNano: testFee})
	mustApply(t, l, DeliverOrder{OrderID: "a", From: seller, TokenID: 42, TokenURI: "ipfs://a"})

	mustApply(t, l, createTx("b"))
	mustApply(t, l, PayEscrow{OrderID: "b", From: customer, AmountNano: testFee})
	mustFail(t, l, DeliverOrder{OrderID: "b", From: seller, TokenID: 42, TokenURI: "ipfs://b"}, ErrTokenExists)

	// The rejected delivery must leave order b untouched.
	b := l.GetEscrow("b")
	if b.Status != StatusAwaitingDelivery {
		t.Errorf("order b status = %s, want AWAITING_DELIVERY", b.Status)
	}
	if b.ReceiptTokenID != 0 {
		t.Errorf("order b token = %d, want unset", b.ReceiptTokenID)
	}
	if uri, _ := l.TokenURI(42); uri != "ipfs://a" {
		t.Errorf("token 42 uri = %q, want ipfs://a", uri)
	}
}

func TestConfirmAndReleaseGuards(t *testing.T) {
	l := newTestLedger(t)
	mustApply(t, l, createTx("cr"))
	mustApply(t, l, PayEscrow{OrderID: "cr", From: customer, AmountNano: testFee})

	mustFail(t, l, ConfirmDelivered{OrderID: "cr", From: customer}, ErrNotInDelivery)
	mustFail(t, l, ReleaseToSeller{OrderID: "cr", From: customer}, ErrNotDelivered)

	mustApply(t, l, DeliverOrder{OrderID: "cr", From: seller, TokenID: 5, TokenURI: "u"})
	mustFail(t, l, ConfirmDelivered{OrderID: "cr", From: seller}, ErrNotCustomer)
	mustApply(t, l, ConfirmDelivered{OrderID: "cr", From: customer})

	mustFail(t, l, ReleaseToSeller{OrderID: "cr", From: seller}, ErrNotCustomer)
	mustApply(t, l, ReleaseToSeller{OrderID: "cr", From: customer})

	// Terminal: nothing moves a completed order.
	mustFail(t, l, ReleaseToSeller{OrderID: "cr", From: customer}, ErrNotDelivered)
	mustFail(t, l, CancelTransaction{OrderID: "cr", From: customer}, ErrCancelNotAllowed)
}

func TestCancelGuards(t *testing.T) {
	l := newTestLedger(t)

	mustApply(t, l, createTx("cg"))
	// Seller cannot cancel before payment.
	mustFail(t, l, CancelTransaction{OrderID: "cg", From: seller}, ErrCancelNotAllowed)

	mustApply(t, l, PayEscrow{OrderID: "cg", From: customer, AmountNano: testFee})
	// Customer cannot cancel once funds are in custody.
	mustFail(t, l, CancelTransaction{OrderID: "cg", From: customer}, ErrCancelNotAllowed)

	mustApply(t, l, DeliverOrder{OrderID: "cg", From: seller, TokenID: 9, TokenURI: "u"})
	// Nobody cancels during delivery.
	mustFail(t, l, CancelTransaction{OrderID: "cg", From: seller}, ErrCancelNotAllowed)
	mustFail(t, l, CancelTransaction{OrderID: "cg", From: customer}, ErrCancelNotAllowed)
}

func TestZeroValuedReads(t *testing.T) {
	l := newTestLedger(t)

	if l.HasEscrow("ghost") {
		t.Error("HasEscrow reports unknown order as existing")
	}
	e := l.GetEscrow("ghost")
	if e.OrderID != "" || e.Status != StatusAwaitingPayment {
		t.Errorf("unknown order read = %+v, want zero value", e)
	}
	if _, err := l.OwnerOf(123); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("OwnerOf unknown token: %v", err)
	}
}

func TestConcurrentPaySingleWinner(t *testing.T) {
	l := newTestLedger(t)
	mustApply(t, l, createTx("race"))

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := l.Submit(context.Background(), PayEscrow{OrderID: "race", From: customer, AmountNano: testFee})
			if err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = p.Wait(context.Background())
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNotPayable):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("winners = %d, want exactly 1", ok)
	}
	if rejected != n-1 {
		t.Fatalf("rejected = %d, want %d", rejected, n-1)
	}
	if got := l.Balance(); got != testFee {
		t.Errorf("custodied balance = %d, want a single deposit %d", got, testFee)
	}
}

func TestBalanceInvariantAcrossLifecycles(t *testing.T) {
	l := newTestLedger(t)

	// Three orders: one released, one refunded, one still holding funds.
	for i, orderID := range []string{"inv-1", "inv-2", "inv-3"} {
		mustApply(t, l, createTx(orderID))
		mustApply(t, l, PayEscrow{OrderID: orderID, From: customer, AmountNano: testFee})
		if i == 0 {
			mustApply(t, l, DeliverOrder{OrderID: orderID, From: seller, TokenID: uint64(i + 1), TokenURI: "u"})
			mustApply(t, l, ConfirmDelivered{OrderID: orderID, From: customer})
			mustApply(t, l, ReleaseToSeller{OrderID: orderID, From: customer})
		}
		if i == 1 {
			mustApply(t, l, CancelTransaction{OrderID: orderID, From: seller})
		}
	}

	if got := l.Balance(); got != testFee {
		t.Errorf("custodied balance = %d, want %d (only inv-3 holds funds)", got, testFee)
	}
	if got := l.BalanceOf(seller); got != testFee {
		t.Errorf("seller payout = %d, want %d", got, testFee)
	}
	if got := l.BalanceOf(customer); got != testFee {
		t.Errorf("customer refund = %d, want %d", got, testFee)
	}
}

// memArchive is an in-memory Archiver for restore tests.
type memArchive struct {
	mu      sync.Mutex
	records map[string]Escrow
	fail    bool
}

func newMemArchive() *memArchive {
	return &memArchive{records: make(map[string]Escrow)}
}

func (a *memArchive) SaveEscrow(_ context.Context, e Escrow) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return fmt.Errorf("archive down")
	}
	a.records[e.OrderID] = e
	return nil
}

func (a *memArchive) LoadEscrows(_ context.Context) ([]Escrow, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Escrow, 0, len(a.records))
	for _, e := range a.records {
		out = append(out, e)
	}
	return out, nil
}

func TestRestoreFromArchive(t *testing.T) {
	arch := newMemArchive()

	l := newTestLedger(t, WithArchiver(arch))
	mustApply(t, l, createTx("warm"))
	mustApply(t, l, PayEscrow{OrderID: "warm", From: customer, AmountNano: testFee})
	mustApply(t, l, DeliverOrder{OrderID: "warm", From: seller, TokenID: 11, TokenURI: "ipfs://warm"})
	l.Close()

	l2 := newTestLedger(t, WithArchiver(arch))
	if err := l2.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}

	e := l2.GetEscrow("warm")
	if e.Status != StatusInDelivery {
		t.Fatalf("restored status = %s, want IN_DELIVERY", e.Status)
	}
	if got := l2.Balance(); got != testFee {
		t.Errorf("restored custodied balance = %d, want %d", got, testFee)
	}
	owner, err := l2.OwnerOf(11)
	if err != nil {
		t.Fatalf("restored OwnerOf: %v", err)
	}
	if owner != customer {
		t.Errorf("restored token owner = %s, want customer", owner.Hex())
	}

	// Duplicate mint stays rejected after the warm start.
	mustApply(t, l2, createTx("warm-2"))
	mustApply(t, l2, PayEscrow{OrderID: "warm-2", From: customer, AmountNano: testFee})
	mustFail(t, l2, DeliverOrder{OrderID: "warm-2", From: seller, TokenID: 11, TokenURI: "x"}, ErrTokenExists)

	// The lifecycle continues where it left off.
	mustApply(t, l2, ConfirmDelivered{OrderID: "warm", From: customer})
	mustApply(t, l2, ReleaseToSeller{OrderID: "warm", From: customer})
}

func TestArchiveFailureDoesNotBlockFinality(t *testing.T) {
	arch := newMemArchive()
	arch.fail = true

	l := newTestLedger(t, WithArchiver(arch))
	res := mustApply(t, l, createTx("lag"))
	if res.Escrow.Status != StatusAwaitingPayment {
		t.Errorf("status = %s, want AWAITING_PAYMENT", res.Escrow.Status)
	}
	// The in-memory state is authoritative even with a down archive.
	if !l.HasEscrow("lag") {
		t.Error("ledger lost the escrow when the archive failed")
	}
}

func TestSubmitAfterClose(t *testing.T) {
	l := New(WithClock(fixedClock))
	l.Close()
	if _, err := l.Submit(context.Background(), createTx("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("submit after close: %v, want ErrClosed", err)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for s := StatusAwaitingPayment; s <= StatusDisputed; s++ {
		parsed, ok := ParseStatus(s.String())
		if !ok || parsed != s {
			t.Errorf("ParseStatus(%q) = %v, %v", s.String(), parsed, ok)
		}
	}
	if _, ok := ParseStatus("SHIPPED"); ok {
		t.Error("SHIPPED is not a ledger status")
	}
	if !StatusComplete.Terminal() || !StatusCanceled.Terminal() || !StatusDisputed.Terminal() {
		t.Error("terminal statuses misreported")
	}
	if StatusDelivered.Terminal() {
		t.Error("DELIVERED is not terminal")
	}
}
