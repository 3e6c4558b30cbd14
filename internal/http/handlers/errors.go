package handlers

import (
	"errors"

	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/ledger"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// respondError maps service failures onto the HTTP taxonomy: guard
// violations are 400, missing records 404, duplicates 409, divergence 502
// (the ledger advanced, the mirror did not), everything else 500.
func respondError(c *fiber.Ctx, orderID string, err error) error {
	var div *services.DivergenceError
	switch {
	case errors.As(err, &div):
		return c.Status(fiber.StatusBadGateway).JSON(dto.DivergenceResponse{
			Error:        "ledger transition finalized but mirror update failed",
			OrderID:      div.OrderID,
			LedgerStatus: div.LedgerStatus.String(),
			Hint:         "retry the mirror update or wait for reconciliation; the ledger state stands",
		})
	case errors.Is(err, repositories.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "transaction not found", OrderID: orderID})
	case errors.Is(err, repositories.ErrOrderExists):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "transaction already exists", OrderID: orderID})
	case ledger.IsGuardViolation(err),
		errors.Is(err, services.ErrShipNotAllowed),
		errors.Is(err, services.ErrMirrorCancelNotAllowed):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error(), OrderID: orderID})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error", OrderID: orderID})
	}
}
