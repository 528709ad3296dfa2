package model

import (
	"time"

	"shop/internal/domain/fsm"
	"shop/internal/domain/money"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
)

// DELIVERED / CANCELED は終端
var OrderTransitions = fsm.Table[OrderStatus]{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCanceled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCanceled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	switch st {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return st, true
	}
	return "", false
}

type Order struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64       `gorm:"not null;index;uniqueIndex:idx_orders_user_idem,priority:1" json:"user_id"`
	AddressID int64       `gorm:"not null" json:"address_id"`
	Status    OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ShippingFee decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"shipping_fee"`
	//クーポン適用後の商品合計（送料は含まない）
	Total decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`

	//使用回数を消費済みのクーポンだけ入る
	CouponID  *int64 `gorm:"index" json:"coupon_id"`
	PaymentID *int64 `json:"payment_id"`

	//チェックアウトの二重送信防止（直接注文はnil）
	IdempotencyKey *string `gorm:"type:varchar(255);uniqueIndex:idx_orders_user_idem,priority:2" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 支払額（商品合計＋送料）
func (o Order) GrandTotal() decimal.Decimal {
	return money.Sum(o.Total, o.ShippingFee)
}

func (o Order) CanTransitionTo(next OrderStatus) error {
	return OrderTransitions.Validate(o.Status, next)
}
