package handler

import (
	"net/http"

	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PaymentCreateRequest struct {
	Method string `json:"method" validate:"required,max=20"`
}

type PaymentCallbackRequest struct {
	EventID       string `json:"event_id" validate:"required,max=128"`
	TransactionID string `json:"transaction_id" validate:"required,max=128"`
	Status        string `json:"status" validate:"required"`
}

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

// callbackは署名ヘッダーで守られたグループに載せる
func (h *PaymentHandler) RegisterRoutes(g *echo.Group, callback *echo.Group) {
	g.POST("/orders/:id/payments", h.create)
	callback.POST("/payments/callback", h.callback)
}

func (h *PaymentHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req PaymentCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.Create(c.Request().Context(), userID, orderID, usecase.CreatePaymentInput{Method: req.Method})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// 同じevent_idの再送は200で現在の状態を返す
func (h *PaymentHandler) callback(c echo.Context) error {
	var req PaymentCallbackRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.HandleCallback(c.Request().Context(), usecase.PaymentCallbackInput{
		EventID:       req.EventID,
		TransactionID: req.TransactionID,
		Status:        req.Status,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
