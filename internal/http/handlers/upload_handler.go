package handlers

import (
	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/ipfs"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UploadHandler pins delivery receipts so sellers can mint tokens pointing at
// content-addressed metadata.
type UploadHandler struct {
	pinClient *ipfs.PinClient
	cfg       *config.Config
	log       *zap.Logger
}

func NewUploadHandler(pinClient *ipfs.PinClient, cfg *config.Config, log *zap.Logger) *UploadHandler {
	return &UploadHandler{pinClient: pinClient, cfg: cfg, log: log}
}

func (h *UploadHandler) UploadReceipt(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "file is required"})
	}

	maxBytes := int64(h.cfg.MaxReceiptSizeMB) << 20
	if fh.Size > maxBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{Error: "file too large"})
	}

	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "failed to read file"})
	}
	defer f.Close()

	res, err := h.pinClient.PinFile(c.Context(), fh.Filename, f)
	if err != nil {
		h.log.Error("receipt pin failed", zap.String("filename", fh.Filename), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "pinning service unavailable"})
	}

	return c.JSON(dto.UploadResponse{
		IpfsHash: res.CID,
		URI:      res.URI,
		URL:      res.URL,
		Size:     res.Size,
	})
}
