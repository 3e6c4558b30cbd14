package services

import (
	"context"
	"sync"
	"time"

	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
)

// fakeOrderStore is an in-memory OrderStore with injectable failures.
type fakeOrderStore struct {
	mu         sync.Mutex
	orders     map[string]*models.Order
	createErr  error
	updateErr  error
	deleted    []string
	lastPatch  repositories.OrderPatch
	updateSeen int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*models.Order)}
}

func (f *fakeOrderStore) Create(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.orders[o.OrderID]; ok {
		return repositories.ErrOrderExists
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	f.orders[o.OrderID] = &cp
	return nil
}

func (f *fakeOrderStore) GetByOrderID(_ context.Context, orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, repositories.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) List(_ context.Context, _, _ int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrderStore) ListByWallet(_ context.Context, wallet string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := models.NormalizeWallet(wallet)
	var out []models.Order
	for _, o := range f.orders {
		if o.CustomerWalletAddress == w || o.SellerWalletAddress == w {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) Update(_ context.Context, orderID string, patch repositories.OrderPatch) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateSeen++
	f.lastPatch = patch
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, repositories.ErrOrderNotFound
	}
	if patch.BlockchainStatus != nil {
		o.BlockchainStatus = *patch.BlockchainStatus
	}
	if patch.TotalAmountETH != nil {
		o.TotalAmountETH = *patch.TotalAmountETH
	}
	if patch.Items != nil {
		o.Items = patch.Items
	}
	if patch.TrackingNumber != nil {
		o.TrackingNumber = patch.TrackingNumber
	}
	if patch.CancelReason != nil {
		o.CancelReason = patch.CancelReason
	}
	if patch.ShippedAt != nil {
		o.ShippedAt = patch.ShippedAt
	}
	if patch.CompletedAt != nil {
		o.CompletedAt = patch.CompletedAt
	}
	if patch.CancelledAt != nil {
		o.CancelledAt = patch.CancelledAt
	}
	if patch.ReceiptTokenID != nil {
		o.ReceiptTokenID = patch.ReceiptTokenID
	}
	if patch.ReceiptURI != nil {
		o.ReceiptURI = patch.ReceiptURI
	}
	o.UpdatedAt = time.Now()
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) Delete(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[orderID]; !ok {
		return repositories.ErrOrderNotFound
	}
	delete(f.orders, orderID)
	f.deleted = append(f.deleted, orderID)
	return nil
}

// fakeAuditStore records log entries.
type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (f *fakeAuditStore) Log(_ context.Context, entry models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) GetByEntity(_ context.Context, entityType, entityID string, _, _ int) ([]models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AuditLog
	for _, e := range f.entries {
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Action
	}
	return out
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

func containsStr(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
