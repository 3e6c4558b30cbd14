package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          uuid.UUID `json:"id"`
	ActorWallet *string   `json:"actor_wallet,omitempty"`
	ActorType   string    `json:"actor_type"` // customer/seller/system
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"` // order/escrow
	EntityID    *string   `json:"entity_id,omitempty"`
	Meta        any       `json:"meta,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
