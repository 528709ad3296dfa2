package handler

import (
	"net/http"

	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

const IdempotencyKeyHeader = "X-Idempotency-Key"

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type CheckoutRequest struct {
	AddressID int64 `json:"address_id" validate:"required,gt=0"`
}

type OrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type PlaceDirectRequest struct {
	AddressID int64              `json:"address_id" validate:"required,gt=0"`
	Items     []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *OrderHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/orders/checkout", h.checkout)
	g.POST("/orders", h.placeDirect)
	g.GET("/orders", h.list)
	g.GET("/orders/:id", h.detail)
	g.POST("/orders/:id/cancel", h.cancel)
}

func (h *OrderHandler) checkout(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	//二重送信防止キーはヘッダーから受け取る
	idemKey := c.Request().Header.Get(IdempotencyKeyHeader)

	out, err := h.uc.Checkout(c.Request().Context(), userID, usecase.CheckoutInput{
		AddressID:      req.AddressID,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) placeDirect(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PlaceDirectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	items := make([]usecase.OrderItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, usecase.OrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	out, err := h.uc.PlaceDirect(c.Request().Context(), userID, usecase.PlaceDirectInput{
		AddressID: req.AddressID,
		Items:     items,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.Cancel(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
