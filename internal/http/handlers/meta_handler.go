package handlers

import (
	"github.com/escrow-storefront/backend/internal/ledger"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaStatus struct {
	ID       string `json:"id"`
	Terminal bool   `json:"terminal"`
	Mirror   bool   `json:"mirror_only"`
}

// Statuses lists the full status vocabulary: the ledger's states plus the
// mirror-only SHIPPED.
func (h *MetaHandler) Statuses(c *fiber.Ctx) error {
	out := make([]MetaStatus, 0, len(models.MirrorStatuses))
	for _, s := range models.MirrorStatuses {
		ms := MetaStatus{ID: s}
		if ls, ok := ledger.ParseStatus(s); ok {
			ms.Terminal = ls.Terminal()
		} else {
			ms.Mirror = true
		}
		out = append(out, ms)
	}
	return c.JSON(fiber.Map{"statuses": out})
}
