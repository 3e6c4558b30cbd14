package handlers

import (
	"time"

	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutHandler exposes the escrow lifecycle. Every route here goes through
// the two-step protocol: ledger first, mirror second.
type CheckoutHandler struct {
	checkoutService *services.CheckoutService
	cfg             *config.Config
	log             *zap.Logger
}

func NewCheckoutHandler(checkoutService *services.CheckoutService, cfg *config.Config, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService, cfg: cfg, log: log}
}

// callerAddress resolves the authenticated wallet into an address usable by
// the ledger.
func callerAddress(c *fiber.Ctx) (common.Address, bool) {
	wallet := middleware.GetWalletAddress(c)
	if wallet == "" || !common.IsHexAddress(wallet) {
		return common.Address{}, false
	}
	return common.HexToAddress(wallet), true
}

func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	from, ok := callerAddress(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "wallet address missing from session"})
	}

	var req dto.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if !common.IsHexAddress(req.SellerWalletAddress) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid seller wallet address"})
	}
	if req.OrderFeeNano <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "order_fee_nano must be positive"})
	}
	if len(req.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "items are required"})
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}
	deadline := time.Now().Add(h.cfg.PaymentWindow).Unix()
	if req.PaymentDeadline != nil {
		deadline = *req.PaymentDeadline
	}

	order, err := h.checkoutService.Checkout(c.Context(), services.CheckoutInput{
		OrderID:         orderID,
		Customer:        from,
		Seller:          common.HexToAddress(req.SellerWalletAddress),
		OrderFeeNano:    req.OrderFeeNano,
		PaymentDeadline: deadline,
		Items:           req.Items,
		TotalAmountETH:  req.TotalAmountETH,
	})
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *CheckoutHandler) Pay(c *fiber.Ctx) error {
	from, ok := callerAddress(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "wallet address missing from session"})
	}
	orderID := c.Params("orderId")

	var req dto.PayRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	order, err := h.checkoutService.Pay(c.Context(), orderID, from, req.AmountNano)
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *CheckoutHandler) Deliver(c *fiber.Ctx) error {
	from, ok := callerAddress(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "wallet address missing from session"})
	}
	orderID := c.Params("orderId")

	var req dto.DeliverRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	order, err := h.checkoutService.Deliver(c.Context(), orderID, from, req.TokenID, req.ReceiptURI)
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *CheckoutHandler) Confirm(c *fiber.Ctx) error {
	from, ok := callerAddress(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "wallet address missing from session"})
	}
	orderID := c.Params("orderId")

	order, err := h.checkoutService.Confirm(c.Context(), orderID, from)
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *CheckoutHandler) Release(c *fiber.Ctx) error {
	from, ok := callerAddress(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "wallet address missing from session"})
	}
	orderID := c.Params("orderId")

	order, err := h.checkoutService.Release(c.Context(), orderID, from)
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *CheckoutHandler) Cancel(c *fiber.Ctx) error {
	from, ok := callerAddress(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "wallet address missing from session"})
	}
	orderID := c.Params("orderId")

	var req dto.CancelOrderRequest
	_ = c.BodyParser(&req)

	order, err := h.checkoutService.Cancel(c.Context(), orderID, from, req.Reason)
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

// GetEscrow returns the authoritative ledger record. Unknown orders come back
// zero-valued rather than as an error, matching the ledger read semantics.
func (h *CheckoutHandler) GetEscrow(c *fiber.Ctx) error {
	esc := h.checkoutService.GetEscrow(c.Params("orderId"))
	return c.JSON(dto.SuccessResponse{OK: true, Data: esc})
}
