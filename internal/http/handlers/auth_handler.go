package handlers

import (
	"github.com/escrow-storefront/backend/internal/auth"
	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

// WalletAuth issues a session token for a wallet address. Possession of the
// wallet is not proven here; the ledger's own guards are what actually gate
// state transitions.
func (h *AuthHandler) WalletAuth(c *fiber.Ctx) error {
	var req dto.AuthWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	if !common.IsHexAddress(req.WalletAddress) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid wallet address"})
	}
	wallet := models.NormalizeWallet(req.WalletAddress)

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, wallet, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.AuthResponse{
		Token:         token,
		WalletAddress: wallet,
	})
}
