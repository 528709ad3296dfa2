package repository

import (
	"context"
	"time"

	"shop/internal/domain/model"
)

type CouponRepository interface {
	FindByID(ctx context.Context, id int64) (model.Coupon, error)
	FindByCode(ctx context.Context, code string) (model.Coupon, error)
	Create(ctx context.Context, c *model.Coupon) error
	ListActive(ctx context.Context, now time.Time) ([]model.Coupon, error)

	// 行ロック付きで取得（Tx内で呼ぶこと）
	LockByID(ctx context.Context, id int64) (model.Coupon, error)
	// current_uses が from のときだけ to に更新
	UpdateUses(ctx context.Context, id int64, from, to int64) (bool, error)
}
