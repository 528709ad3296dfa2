package handler

import (
	"net/http"
	"time"

	"shop/internal/domain/money"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type CouponCreateRequest struct {
	Code               string    `json:"code" validate:"required,coupon_code"`
	DiscountValue      string    `json:"discount_value" validate:"omitempty,numeric"`
	DiscountPercentage int64     `json:"discount_percentage" validate:"min=0,max=100"`
	MaxUses            int64     `json:"max_uses" validate:"required,gt=0"`
	ValidUntil         time.Time `json:"valid_until" validate:"required"`
	Active             *bool     `json:"active"`
}

type CouponValidateRequest struct {
	Code   string `json:"code" validate:"required,coupon_code"`
	Amount string `json:"amount" validate:"omitempty,numeric"`
}

type CouponHandler struct {
	uc *usecase.CouponUsecase
}

func NewCouponHandler(uc *usecase.CouponUsecase) *CouponHandler {
	return &CouponHandler{uc: uc}
}

func (h *CouponHandler) RegisterRoutes(public *echo.Group, admin *echo.Group) {
	public.POST("/coupons/validate", h.validate)
	public.GET("/coupons/active", h.listActive)

	admin.POST("/coupons", h.create)
}

func (h *CouponHandler) create(c echo.Context) error {
	var req CouponCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Create(c.Request().Context(), adminID, usecase.CreateCouponInput{
		Code:               req.Code,
		DiscountValue:      req.DiscountValue,
		DiscountPercentage: req.DiscountPercentage,
		MaxUses:            req.MaxUses,
		ValidUntil:         req.ValidUntil,
		Active:             req.Active,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *CouponHandler) validate(c echo.Context) error {
	var req CouponValidateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	var amount *decimal.Decimal
	if req.Amount != "" {
		v, err := money.Parse(req.Amount)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid amount"})
		}
		amount = &v
	}

	out, err := h.uc.Validate(c.Request().Context(), req.Code, amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CouponHandler) listActive(c echo.Context) error {
	out, err := h.uc.ListActive(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
