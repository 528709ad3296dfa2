package repository

import (
	"context"

	"shop/internal/domain/model"

	"github.com/shopspring/decimal"
)

type CartRepository interface {
	// 行ロック付き（無ければ作る）
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByID(ctx context.Context, cartID int64) (model.Cart, error)
	// 行ロック付きで取得（Tx内で呼ぶこと）
	LockByUserID(ctx context.Context, userID int64) (model.Cart, error)
	LockByID(ctx context.Context, cartID int64) (model.Cart, error)
	UpdateTotals(ctx context.Context, cartID int64, subtotal, total decimal.Decimal) error
	// nil で外す
	SetCoupon(ctx context.Context, cartID int64, couponID *int64) error
}
