package handlers

import (
	"strconv"

	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler serves the mirror projection: listing, filtering, and the
// mirror's own transitions.
type OrderHandler struct {
	orderService *services.OrderService
	log          *zap.Logger
}

func NewOrderHandler(orderService *services.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, log: log}
}

func (h *OrderHandler) ListTransactions(c *fiber.Ctx) error {
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	orders, err := h.orderService.List(c.Context(), limit, offset)
	if err != nil {
		h.log.Error("list transactions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "failed to fetch transactions"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: orders})
}

func (h *OrderHandler) ListByWallet(c *fiber.Ctx) error {
	wallet := c.Params("walletAddress")
	if wallet == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "missing walletAddress parameter"})
	}

	orders, err := h.orderService.ListByWallet(c.Context(), wallet)
	if err != nil {
		h.log.Error("list transactions by wallet failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "failed to fetch user transactions"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: orders})
}

func (h *OrderHandler) GetTransaction(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	order, err := h.orderService.Get(c.Context(), orderID)
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) GetTransactionStatus(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	summary, err := h.orderService.GetStatus(c.Context(), orderID)
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: summary})
}

func (h *OrderHandler) GetTransactionHistory(c *fiber.Ctx) error {
	orderID := c.Params("orderId")

	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	logs, err := h.orderService.History(c.Context(), orderID, limit, offset)
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}

func (h *OrderHandler) CreateTransaction(c *fiber.Ctx) error {
	var req dto.CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.OrderID == "" || req.CustomerWalletAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "order_id and customer_wallet_address are required"})
	}

	order := &models.Order{
		OrderID:               req.OrderID,
		CustomerWalletAddress: req.CustomerWalletAddress,
		SellerWalletAddress:   req.SellerWalletAddress,
		Items:                 req.Items,
		TotalAmountETH:        req.TotalAmountETH,
		BlockchainStatus:      req.BlockchainStatus,
	}
	if err := h.orderService.Create(c.Context(), order); err != nil {
		return respondError(c, req.OrderID, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) UpdateTransaction(c *fiber.Ctx) error {
	orderID := c.Params("orderId")

	var req dto.UpdateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	order, err := h.orderService.Update(c.Context(), orderID, req.ToPatch())
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) ShipTransaction(c *fiber.Ctx) error {
	orderID := c.Params("orderId")

	var req dto.ShipTransactionRequest
	if err := c.BodyParser(&req); err != nil || req.TrackingNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "tracking_number is required"})
	}

	order, err := h.orderService.Ship(c.Context(), orderID, req.TrackingNumber)
	if err != nil {
		return respondError(c, orderID, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) CancelTransaction(c *fiber.Ctx) error {
	orderID := c.Params("orderId")

	var req dto.CancelTransactionRequest
	_ = c.BodyParser(&req)

	order, err := h.orderService.Cancel(c.Context(), orderID, req.Reason, req.HardDelete)
	if err != nil {
		return respondError(c, orderID, err)
	}
	if order == nil {
		// hard delete
		return c.JSON(dto.SuccessResponse{OK: true})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}
