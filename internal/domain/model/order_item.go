package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細（order, product で一意）。PENDINGを抜けたら変更しない
type OrderItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64           `gorm:"not null;uniqueIndex:idx_order_items_order_product,priority:1" json:"order_id"`
	ProductID           int64           `gorm:"not null;uniqueIndex:idx_order_items_order_product,priority:2;index" json:"product_id"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPrice           decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	TotalPrice          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	CreatedAt           time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
