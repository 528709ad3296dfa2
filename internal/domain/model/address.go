package model

import "time"

// 配送先。注文はIDだけ持つ（住所の管理はユーザー側の機能）
type Address struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"not null;index" json:"user_id"`
	Recipient  string    `gorm:"type:varchar(255);not null" json:"recipient"`
	PostalCode string    `gorm:"type:varchar(20);not null" json:"postal_code"`
	City       string    `gorm:"type:varchar(255);not null" json:"city"`
	Line1      string    `gorm:"type:varchar(255);not null" json:"line1"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
