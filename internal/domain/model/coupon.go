package model

import (
	"errors"
	"strings"
	"time"

	"shop/internal/domain/money"

	"github.com/shopspring/decimal"
)

// 定額（DiscountValue）か割引率（DiscountPercentage）のどちらか一方
type Coupon struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Code string `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`

	DiscountValue      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"discount_value"`
	DiscountPercentage int64           `gorm:"not null" json:"discount_percentage"`

	MaxUses     int64 `gorm:"not null" json:"max_uses"`
	CurrentUses int64 `gorm:"not null" json:"current_uses"`

	ValidUntil time.Time `gorm:"not null;index" json:"valid_until"`
	Active     bool      `gorm:"not null;index" json:"active"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 大文字・前後空白なしに揃える
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// 有効か（active・期限内・上限未満）
func (c Coupon) IsValid(now time.Time) bool {
	return c.Active && !now.After(c.ValidUntil) && c.CurrentUses < c.MaxUses
}

// 今はIsValidと同じ（ユーザー毎の上限などはここに足す）
func (c Coupon) CanBeUsed(now time.Time) bool {
	return c.IsValid(now)
}

func (c Coupon) IsExhausted() bool {
	return c.CurrentUses >= c.MaxUses
}

// 割引額（amountを超えない）
func (c Coupon) Discount(amount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	if c.DiscountPercentage > 0 {
		d = money.Percent(amount, c.DiscountPercentage)
	} else {
		d = money.Round(c.DiscountValue)
	}
	return money.NonNegative(decimal.Min(d, amount))
}

// 割引後の金額（0未満にしない）
func (c Coupon) ApplyDiscount(amount decimal.Decimal) decimal.Decimal {
	return money.NonNegative(money.Round(amount.Sub(c.Discount(amount))))
}

// 表示用（"10%" / "20.00"）
func (c Coupon) DiscountDisplay() string {
	if c.DiscountPercentage > 0 {
		return decimal.NewFromInt(c.DiscountPercentage).String() + "%"
	}
	return c.DiscountValue.StringFixed(money.Places)
}

// 使えるときだけ回数を+1
func (c *Coupon) Use(now time.Time) bool {
	if !c.CanBeUsed(now) {
		return false
	}
	c.CurrentUses++
	return true
}

// 回数を-1（0未満にしない）
func (c *Coupon) Release() {
	if c.CurrentUses > 0 {
		c.CurrentUses--
	}
}

// 作成・更新時のチェック
func (c Coupon) Validate(now time.Time) error {
	if len(NormalizeCouponCode(c.Code)) < 3 {
		return errors.New("code must be at least 3 characters")
	}
	hasValue := c.DiscountValue.IsPositive()
	hasPct := c.DiscountPercentage > 0
	if hasValue == hasPct {
		return errors.New("exactly one of discount_value or discount_percentage is required")
	}
	if c.DiscountValue.IsNegative() {
		return errors.New("discount_value must be >= 0")
	}
	if c.DiscountPercentage < 0 || c.DiscountPercentage > 100 {
		return errors.New("discount_percentage must be between 0 and 100")
	}
	if c.MaxUses < 1 {
		return errors.New("max_uses must be >= 1")
	}
	if c.CurrentUses < 0 || c.CurrentUses > c.MaxUses {
		return errors.New("current_uses out of range")
	}
	if !c.ValidUntil.After(now) {
		return errors.New("valid_until must be in the future")
	}
	return nil
}
