package model

import (
	"time"

	"shop/internal/domain/money"

	"github.com/shopspring/decimal"
)

// カートの明細（cart, product で一意）
// 数量を押さえている引当を1つ持つ（holder = CART_LINE:ID）
type CartItem struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64 `gorm:"not null;uniqueIndex:idx_cart_items_cart_product,priority:1" json:"cart_id"`
	ProductID int64 `gorm:"not null;uniqueIndex:idx_cart_items_cart_product,priority:2;index" json:"product_id"`
	Quantity  int64 `gorm:"not null" json:"quantity"`

	//追加・更新した時点の価格
	PriceAtTime decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price_at_time"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 数量と価格を入れて合計を計算し直す
func (i *CartItem) Reprice(qty int64, unitPrice decimal.Decimal) {
	i.Quantity = qty
	i.PriceAtTime = money.Round(unitPrice)
	i.TotalPrice = money.LineTotal(unitPrice, qty)
}
