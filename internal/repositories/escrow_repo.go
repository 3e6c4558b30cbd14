package repositories

import (
	"context"
	"errors"

	"github.com/escrow-storefront/backend/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EscrowRepo is the ledger archive: a write-through copy of applied escrow
// states. The ledger engine is the only writer; the reconciler reads it to
// re-derive stale mirror records.
type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

func (r *EscrowRepo) SaveEscrow(ctx context.Context, e ledger.Escrow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO escrow_archive (order_id, customer, seller, canceled_by,
		                            order_fee_nano, payment_deadline, status,
		                            funds_deposited, receipt_token_id, receipt_uri)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_id) DO UPDATE SET
			canceled_by = EXCLUDED.canceled_by,
			status = EXCLUDED.status,
			funds_deposited = EXCLUDED.funds_deposited,
			receipt_token_id = EXCLUDED.receipt_token_id,
			receipt_uri = EXCLUDED.receipt_uri,
			updated_at = now()
	`, e.OrderID, e.Customer.Hex(), e.Seller.Hex(), e.CanceledBy.Hex(),
		e.OrderFeeNano, e.PaymentDeadline, int16(e.Status),
		e.FundsDeposited, int64(e.ReceiptTokenID), e.ReceiptURI)
	return err
}

func (r *EscrowRepo) LoadEscrows(ctx context.Context) ([]ledger.Escrow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, customer, seller, canceled_by, order_fee_nano,
		       payment_deadline, status, funds_deposited, receipt_token_id, receipt_uri
		FROM escrow_archive
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escrows []ledger.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}

func (r *EscrowRepo) GetByOrderID(ctx context.Context, orderID string) (*ledger.Escrow, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT order_id, customer, seller, canceled_by, order_fee_nano,
		       payment_deadline, status, funds_deposited, receipt_token_id, receipt_uri
		FROM escrow_archive WHERE order_id = $1
	`, orderID)
	e, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return e, err
}

func scanEscrow(row pgx.Row) (*ledger.Escrow, error) {
	var e ledger.Escrow
	var customer, seller, canceledBy string
	var status int16
	var tokenID int64
	if err := row.Scan(&e.OrderID, &customer, &seller, &canceledBy, &e.OrderFeeNano,
		&e.PaymentDeadline, &status, &e.FundsDeposited, &tokenID, &e.ReceiptURI); err != nil {
		return nil, err
	}
	e.Customer = common.HexToAddress(customer)
	e.Seller = common.HexToAddress(seller)
	e.CanceledBy = common.HexToAddress(canceledBy)
	e.Status = ledger.OrderStatus(status)
	e.ReceiptTokenID = uint64(tokenID)
	return &e, nil
}
