package model

import (
	"fmt"
	"time"
)

type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "RESERVED"
	ReservationConverted ReservationStatus = "CONVERTED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationReleased  ReservationStatus = "RELEASED"
)

// 引当の持ち主の種類
type HolderKind string

const (
	HolderCartLine HolderKind = "CART_LINE"
	HolderOrder    HolderKind = "ORDER"
)

// 引当の持ち主（カート明細 or 注文のどちらか一方）
type Holder struct {
	Kind HolderKind
	ID   int64
}

func CartLineHolder(cartItemID int64) Holder {
	return Holder{Kind: HolderCartLine, ID: cartItemID}
}

func OrderHolder(orderID int64) Holder {
	return Holder{Kind: HolderOrder, ID: orderID}
}

func (h Holder) Valid() bool {
	if h.ID <= 0 {
		return false
	}
	return h.Kind == HolderCartLine || h.Kind == HolderOrder
}

func (h Holder) String() string {
	return fmt.Sprintf("%s:%d", h.Kind, h.ID)
}

// 在庫引当。RESERVEDのものだけが販売可能在庫を減らす
// RESERVED以外は終端（CONVERTED / EXPIRED / RELEASED）
type StockReservation struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64 `gorm:"not null;index:idx_reservations_product_status,priority:1" json:"product_id"`

	HolderKind HolderKind `gorm:"type:varchar(20);not null;index:idx_reservations_holder,priority:1" json:"holder_kind"`
	HolderID   int64      `gorm:"not null;index:idx_reservations_holder,priority:2" json:"holder_id"`

	Quantity  int64             `gorm:"not null" json:"quantity"`
	Status    ReservationStatus `gorm:"type:varchar(20);not null;index:idx_reservations_product_status,priority:2;index:idx_reservations_status_expiry,priority:1" json:"status"`
	ExpiresAt time.Time         `gorm:"not null;index:idx_reservations_status_expiry,priority:2" json:"expires_at"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (r StockReservation) Holder() Holder {
	return Holder{Kind: r.HolderKind, ID: r.HolderID}
}

func (r *StockReservation) SetHolder(h Holder) {
	r.HolderKind = h.Kind
	r.HolderID = h.ID
}

// まだ在庫を押さえているか
func (r StockReservation) IsActive(now time.Time) bool {
	return r.Status == ReservationReserved && r.ExpiresAt.After(now)
}
