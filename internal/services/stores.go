package services

import (
	"context"

	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
)

// OrderStore is the slice of the mirror the services need. Satisfied by
// *repositories.OrderRepo; tests substitute fakes.
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	List(ctx context.Context, limit, offset int) ([]models.Order, error)
	ListByWallet(ctx context.Context, wallet string) ([]models.Order, error)
	Update(ctx context.Context, orderID string, patch repositories.OrderPatch) (*models.Order, error)
	Delete(ctx context.Context, orderID string) error
}

// AuditStore records lifecycle actions. Satisfied by *repositories.AuditRepo.
type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]models.AuditLog, error)
}
