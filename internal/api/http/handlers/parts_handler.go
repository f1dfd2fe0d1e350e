package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/intervention-service/internal/api/dto"
	"github.com/fieldops/intervention-service/internal/observability"
	"github.com/fieldops/intervention-service/internal/service"
)

// PartsHandler manages recorded part lines and stock levels.
type PartsHandler struct {
	stock   *service.StockService
	metrics *observability.Metrics
}

// NewPartsHandler constructs handler.
func NewPartsHandler(stock *service.StockService, metrics *observability.Metrics) *PartsHandler {
	return &PartsHandler{stock: stock, metrics: metrics}
}

// Update PATCH /parts/:id.
func (h *PartsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdatePartRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	line, err := h.stock.UpdatePartLine(c.UserContext(), c.Params("id"), service.PartLineUpdate{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err := tracked(h.metrics, "update_part", err); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": partLineResponse(line)})
}

// Delete DELETE /parts/:id.
func (h *PartsHandler) Delete(c *fiber.Ctx) error {
	err := h.stock.RemovePartLine(c.UserContext(), c.Params("id"))
	if err := tracked(h.metrics, "remove_part", err); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Level GET /stock/:productID.
func (h *PartsHandler) Level(c *fiber.Ctx) error {
	productID := c.Params("productID")
	available, err := h.stock.Available(c.UserContext(), productID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StockLevelResponse{ProductID: productID, Available: available}})
}

// Adjust POST /stock/adjustments.
func (h *PartsHandler) Adjust(c *fiber.Ctx) error {
	var req dto.StockAdjustmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	available, err := h.stock.AdjustStock(c.UserContext(), req.ProductID, req.Delta)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StockLevelResponse{ProductID: req.ProductID, Available: available}})
}
