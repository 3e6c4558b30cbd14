package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/escrow-storefront/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrOrderExists   = errors.New("order id already exists")
	ErrOrderNotFound = errors.New("order not found")
)

const orderColumns = `
	id, order_id, customer_wallet_address, seller_wallet_address, items,
	total_amount_eth, blockchain_status, tracking_number, cancel_reason,
	shipped_at, completed_at, cancelled_at, receipt_token_id, receipt_uri,
	created_at, updated_at`

// OrderPatch is a typed partial update. Only non-nil fields are written;
// everything else is left untouched (a merge, not a replace).
type OrderPatch struct {
	BlockchainStatus *string
	TotalAmountETH   *string
	Items            []models.OrderItem
	TrackingNumber   *string
	CancelReason     *string
	ShippedAt        *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	ReceiptTokenID   *int64
	ReceiptURI       *string
}

func (p OrderPatch) empty() bool {
	return p.BlockchainStatus == nil && p.TotalAmountETH == nil && p.Items == nil &&
		p.TrackingNumber == nil && p.CancelReason == nil && p.ShippedAt == nil &&
		p.CompletedAt == nil && p.CancelledAt == nil && p.ReceiptTokenID == nil &&
		p.ReceiptURI == nil
}

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO orders (order_id, customer_wallet_address, seller_wallet_address,
		                    items, total_amount_eth, blockchain_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, o.OrderID, models.NormalizeWallet(o.CustomerWalletAddress), models.NormalizeWallet(o.SellerWalletAddress),
		items, o.TotalAmountETH, o.BlockchainStatus,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrOrderExists
	}
	return err
}

func (r *OrderRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
	return scanOrder(row)
}

func (r *OrderRepo) List(ctx context.Context, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListByWallet matches records where the address is either party,
// case-insensitively.
func (r *OrderRepo) ListByWallet(ctx context.Context, wallet string) ([]models.Order, error) {
	w := models.NormalizeWallet(wallet)
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE customer_wallet_address = $1 OR seller_wallet_address = $1
		ORDER BY created_at DESC
	`, w)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// Update applies a partial merge and returns the resulting record.
func (r *OrderRepo) Update(ctx context.Context, orderID string, patch OrderPatch) (*models.Order, error) {
	if patch.empty() {
		return r.GetByOrderID(ctx, orderID)
	}

	sets := []string{"updated_at = now()"}
	args := []any{}
	argIdx := 1

	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, val)
		argIdx++
	}

	if patch.BlockchainStatus != nil {
		add("blockchain_status", *patch.BlockchainStatus)
	}
	if patch.TotalAmountETH != nil {
		add("total_amount_eth", *patch.TotalAmountETH)
	}
	if patch.Items != nil {
		items, err := json.Marshal(patch.Items)
		if err != nil {
			return nil, err
		}
		add("items", items)
	}
	if patch.TrackingNumber != nil {
		add("tracking_number", *patch.TrackingNumber)
	}
	if patch.CancelReason != nil {
		add("cancel_reason", *patch.CancelReason)
	}
	if patch.ShippedAt != nil {
		add("shipped_at", *patch.ShippedAt)
	}
	if patch.CompletedAt != nil {
		add("completed_at", *patch.CompletedAt)
	}
	if patch.CancelledAt != nil {
		add("cancelled_at", *patch.CancelledAt)
	}
	if patch.ReceiptTokenID != nil {
		add("receipt_token_id", *patch.ReceiptTokenID)
	}
	if patch.ReceiptURI != nil {
		add("receipt_uri", *patch.ReceiptURI)
	}

	query := "UPDATE orders SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += fmt.Sprintf(" WHERE order_id = $%d RETURNING %s", argIdx, orderColumns)
	args = append(args, orderID)

	row := r.pool.QueryRow(ctx, query, args...)
	return scanOrder(row)
}

// Delete is the hard-delete cancellation path.
func (r *OrderRepo) Delete(ctx context.Context, orderID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE order_id = $1`, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var items []byte
	err := row.Scan(&o.ID, &o.OrderID, &o.CustomerWalletAddress, &o.SellerWalletAddress, &items,
		&o.TotalAmountETH, &o.BlockchainStatus, &o.TrackingNumber, &o.CancelReason,
		&o.ShippedAt, &o.CompletedAt, &o.CancelledAt, &o.ReceiptTokenID, &o.ReceiptURI,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
