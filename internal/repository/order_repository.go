package repository

import (
	"context"
	"time"

	"shop/internal/domain/model"

	"github.com/shopspring/decimal"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order *model.Order) error

	// from のときだけ to に変える（compare-and-set）。変わらなければ false
	UpdateStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error)

	UpdateTotals(ctx context.Context, orderID int64, subtotal, shippingFee, total decimal.Decimal) error
	SetCoupon(ctx context.Context, orderID int64, couponID *int64) error
	SetPayment(ctx context.Context, orderID int64, paymentID int64) error

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
