package repository

import (
	"context"

	"shop/internal/domain/model"
)

// 確定在庫（products.stock）の更新
type InventoryRepository interface {
	// 行ロック付きで商品を取得（同じ商品への引当を直列化する）
	LockProduct(ctx context.Context, productID int64) (model.Product, error)

	// 在庫の現在値を設定
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
