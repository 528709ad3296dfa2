package handler

import (
	"net/http"

	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type InventoryUpdateRequest struct {
	Stock  *int64 `json:"stock" validate:"required,min=0"`
	Reason string `json:"reason" validate:"required,max=255"`
}

// 在庫の参照と管理者の在庫調整
type StockHandler struct {
	ledger *usecase.StockLedger
}

func NewStockHandler(ledger *usecase.StockLedger) *StockHandler {
	return &StockHandler{ledger: ledger}
}

func (h *StockHandler) RegisterRoutes(public *echo.Group, admin *echo.Group) {
	public.GET("/products/:id/stock", h.getStock)
	admin.PUT("/inventory/:id", h.updateInventory)
}

func (h *StockHandler) getStock(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.ledger.AvailableStock(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *StockHandler) updateInventory(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req InventoryUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.ledger.AdjustStock(c.Request().Context(), adminID, id, usecase.AdjustStockInput{
		NewStock: *req.Stock,
		Reason:   req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
