package model

import (
	"errors"
	"fmt"

	"shop/internal/domain/fsm"
)

// 業務エラー（usecase/handlerで errors.Is で判定する）
var (
	// 要求数量が販売可能在庫を超えた
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")

	// 注文・決済で許可されていない遷移
	ErrInvalidStatusTransition = fsm.ErrInvalidTransition

	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponInvalid   = errors.New("coupon invalid")
	ErrCouponExhausted = errors.New("coupon exhausted")

	ErrEmptyOrder       = errors.New("empty order")
	ErrOrderNotFound    = errors.New("order not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrCartLineNotFound = errors.New("cart line not found")
)

// 在庫不足の詳細（errors.Is(err, ErrInsufficientStock) が通る）
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: product %d requested %d available %d", ErrInsufficientStock, e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
