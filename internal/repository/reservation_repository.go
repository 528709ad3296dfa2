package repository

import (
	"context"
	"time"

	"shop/internal/domain/model"
)

// 在庫引当の保存・状態遷移
// 状態遷移はすべて RESERVED からの compare-and-set
type ReservationRepository interface {
	Create(ctx context.Context, r *model.StockReservation) error

	// RESERVED かつ期限内の数量合計（exclude の持ち主の分は除く）
	SumActive(ctx context.Context, productID int64, now time.Time, exclude *model.Holder) (int64, error)

	ListByHolder(ctx context.Context, holder model.Holder, status model.ReservationStatus) ([]model.StockReservation, error)

	// holder の RESERVED を to に変える（変わった件数を返す）
	TransitionByHolder(ctx context.Context, holder model.Holder, to model.ReservationStatus) (int64, error)

	// 期限内の RESERVED を別の持ち主へ付け替える（チェックアウト時）
	Reassign(ctx context.Context, from model.Holder, to model.Holder, now time.Time, expiresAt time.Time) (int64, error)

	// 注文の商品ごとに期限内の RESERVED を CONVERTED にして、その数量を返す
	ConvertForOrder(ctx context.Context, orderID int64, productID int64, now time.Time) (int64, error)

	// 期限切れ（expires_at < now）の RESERVED を EXPIRED にする
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}
