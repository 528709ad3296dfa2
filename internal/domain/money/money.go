package money

import (
	"github.com/shopspring/decimal"
)

// 金額は小数2桁で保持する
const Places int32 = 2

var hundred = decimal.NewFromInt(100)

// 0円
func Zero() decimal.Decimal {
	return decimal.Zero.Round(Places)
}

// 小数2桁に丸める（四捨五入）
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// "19.99" のような文字列から金額を作る
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return Round(d), nil
}

// 単価×数量
func LineTotal(unitPrice decimal.Decimal, qty int64) decimal.Decimal {
	return Round(unitPrice.Mul(decimal.NewFromInt(qty)))
}

// 合計
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round(total)
}

// amount × pct / 100
func Percent(amount decimal.Decimal, pct int64) decimal.Decimal {
	return Round(amount.Mul(decimal.NewFromInt(pct)).Div(hundred))
}

// マイナスにしない
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero()
	}
	return d
}
