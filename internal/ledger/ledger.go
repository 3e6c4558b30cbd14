// Package ledger implements the authoritative escrow state machine: one
// record per order, guarded status transitions, fund custody, and receipt
// token minting. Transactions are applied by a single goroutine, so calls
// against the same order are totally ordered and only the first one
// satisfying its guard succeeds; later conflicting calls fail cleanly with
// no partial effect.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Archiver persists applied escrow records. The engine is the sole writer;
// readers (the reconciler) only ever see fully applied states.
type Archiver interface {
	SaveEscrow(ctx context.Context, e Escrow) error
	LoadEscrows(ctx context.Context) ([]Escrow, error)
}

type state struct {
	escrows  map[string]*Escrow
	tokens   map[uint64]receiptToken
	balance  int64
	accounts map[common.Address]int64
}

type submission struct {
	tx Tx
	p  *PendingTx
}

type Ledger struct {
	mu       sync.RWMutex
	st       *state
	subCh    chan *submission
	closed   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	nonce    atomic.Uint64
	now      func() time.Time
	archiver Archiver
	log      *zap.Logger
}

type Option func(*Ledger)

// WithClock overrides the transaction timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(l *Ledger) { l.now = fn }
}

// WithArchiver enables write-through persistence of applied escrows.
func WithArchiver(a Archiver) Option {
	return func(l *Ledger) { l.archiver = a }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		st: &state{
			escrows:  make(map[string]*Escrow),
			tokens:   make(map[uint64]receiptToken),
			accounts: make(map[common.Address]int64),
		},
		subCh:  make(chan *submission, 64),
		closed: make(chan struct{}),
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Restore warm-starts the engine from the archive. Custodied balance and
// minted tokens are re-derived from the escrow records; external account
// balances are not part of ledger state and start at zero.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.archiver == nil {
		return nil
	}
	escrows, err := l.archiver.LoadEscrows(ctx)
	if err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range escrows {
		e := escrows[i]
		l.st.escrows[e.OrderID] = &e
		if e.ReceiptTokenID != 0 {
			l.st.tokens[e.ReceiptTokenID] = receiptToken{owner: e.Customer, uri: e.ReceiptURI}
		}
		if e.FundsDeposited {
			l.st.balance += e.OrderFeeNano
		}
	}
	l.log.Info("ledger restored", zap.Int("escrows", len(escrows)))
	return nil
}

// Close stops accepting submissions and waits for the applier to drain.
func (l *Ledger) Close() {
	l.stopOnce.Do(func() { close(l.closed) })
	l.wg.Wait()
}

// Submit enqueues a transaction and returns its pending handle. The context
// only bounds enqueueing: once accepted, a transaction cannot be retracted,
// it can only be awaited.
func (l *Ledger) Submit(ctx context.Context, tx Tx) (*PendingTx, error) {
	n := l.nonce.Add(1)
	p := &PendingTx{
		Hash: crypto.Keccak256Hash([]byte(fmt.Sprintf("%s|%d", tx.orderID(), n))),
		done: make(chan struct{}),
	}
	select {
	case l.subCh <- &submission{tx: tx, p: p}:
		return p, nil
	case <-l.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Ledger) run() {
	defer l.wg.Done()
	for {
		select {
		case sub := <-l.subCh:
			l.apply(sub)
		case <-l.closed:
			// Drain anything already accepted.
			for {
				select {
				case sub := <-l.subCh:
					l.apply(sub)
				default:
					return
				}
			}
		}
	}
}

func (l *Ledger) apply(sub *submission) {
	l.mu.Lock()
	e, event, err := sub.tx.apply(l.st, l.now())
	var snapshot Escrow
	if err == nil {
		snapshot = *e
	}
	l.mu.Unlock()

	if err != nil {
		sub.p.reject(err)
		return
	}

	if l.archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if aerr := l.archiver.SaveEscrow(ctx, snapshot); aerr != nil {
			// Ledger state is authoritative; a lagging archive only delays
			// reconciliation.
			l.log.Warn("escrow archive write failed",
				zap.String("order_id", snapshot.OrderID), zap.Error(aerr))
		}
		cancel()
	}

	sub.p.finalize(&Result{TxHash: sub.p.Hash, Event: event, Escrow: snapshot})
}

// GetEscrow returns the escrow record for orderID, zero-valued if unknown.
func (l *Ledger) GetEscrow(orderID string) Escrow {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e, ok := l.st.escrows[orderID]; ok {
		return *e
	}
	return Escrow{}
}

// HasEscrow reports whether orderID has ever been created.
func (l *Ledger) HasEscrow(orderID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.st.escrows[orderID]
	return ok
}

// Balance returns the total custodied amount. It equals the sum of
// OrderFeeNano over all escrows currently holding deposited funds.
func (l *Ledger) Balance() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.balance
}

// BalanceOf returns the amount paid out to addr by releases and refunds.
func (l *Ledger) BalanceOf(addr common.Address) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.accounts[addr]
}

// OwnerOf returns the holder of a minted receipt token.
func (l *Ledger) OwnerOf(tokenID uint64) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.st.tokens[tokenID]
	if !ok {
		return common.Address{}, ErrUnknownToken
	}
	return t.owner, nil
}

// TokenURI returns the metadata pointer of a minted receipt token.
func (l *Ledger) TokenURI(tokenID uint64) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.st.tokens[tokenID]
	if !ok {
		return "", ErrUnknownToken
	}
	return t.uri, nil
}

// PendingTx is the handle for a submitted transaction. Wait blocks until
// finality: the point where the transition has been applied (or rejected)
// and can no longer be reordered.
type PendingTx struct {
	Hash common.Hash
	done chan struct{}
	res  *Result
	err  error
}

// Result is the outcome of an applied transaction.
type Result struct {
	TxHash common.Hash
	Event  string
	Escrow Escrow
}

func (p *PendingTx) finalize(res *Result) {
	p.res = res
	close(p.done)
}

func (p *PendingTx) reject(err error) {
	p.err = err
	close(p.done)
}

// Wait blocks until the transaction reaches finality. Cancelling the
// context abandons the wait, not the transaction.
func (p *PendingTx) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-p.done:
		return p.res, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
