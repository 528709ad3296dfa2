package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 1ユーザーにつき1つ
type Cart struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;uniqueIndex" json:"user_id"`

	Subtotal decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	//クーポン適用後
	Total decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`

	CouponID *int64 `gorm:"index" json:"coupon_id"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
