package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 商品（カタログ側が所有。ここでは価格と在庫だけ使う）
type Product struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	Price decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	//セール価格（Priceより安いときだけ有効）
	DiscountPrice decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"discount_price"`

	//確定在庫。減るのは販売確定（ConvertToSale）のときだけ
	Stock int64 `gorm:"not null" json:"stock"`

	IsActive  bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// セール中か
func (p Product) HasDiscount() bool {
	return p.DiscountPrice.Valid && p.DiscountPrice.Decimal.LessThan(p.Price)
}

// 今の販売価格（セール価格 or 通常価格）
func (p Product) CurrentPrice() decimal.Decimal {
	if p.HasDiscount() {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}
