package model

import (
	"shop/internal/domain/money"

	"github.com/shopspring/decimal"
)

// カート・注文で共通の合計
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// 明細合計にクーポンをかける
// coupon が nil なら割引なし
func CalculateTotals(lineTotals []decimal.Decimal, coupon *Coupon) Totals {
	subtotal := money.Sum(lineTotals...)
	if coupon == nil {
		return Totals{Subtotal: subtotal, Discount: money.Zero(), Total: subtotal}
	}
	total := coupon.ApplyDiscount(subtotal)
	return Totals{
		Subtotal: subtotal,
		Discount: money.Round(subtotal.Sub(total)),
		Total:    total,
	}
}

// 送料ルール
type ShippingPolicy struct {
	//これを超えたら送料無料
	FreeThreshold decimal.Decimal
	Fee           decimal.Decimal
}

func DefaultShippingPolicy() ShippingPolicy {
	return ShippingPolicy{
		FreeThreshold: decimal.RequireFromString("500.00"),
		Fee:           decimal.RequireFromString("15.00"),
	}
}

func (p ShippingPolicy) FeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(p.FreeThreshold) {
		return money.Zero()
	}
	return money.Round(p.Fee)
}
