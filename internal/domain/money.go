package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round rounds an amount to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// AdvanceSplit returns the advance share of total at percentage and what is
// left to pay after it.
func AdvanceSplit(total decimal.Decimal, percentage int) (advance, remaining decimal.Decimal) {
	advance = Round(total.Mul(decimal.NewFromInt(int64(percentage))).Div(hundred))
	remaining = Round(total.Sub(advance))
	return advance, remaining
}
