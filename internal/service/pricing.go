package service

import "github.com/shopspring/decimal"

// RentalCost is the charge for keeping a book for days days.
func RentalCost(dailyFee decimal.Decimal, days int) decimal.Decimal {
	return dailyFee.Mul(decimal.NewFromInt(int64(days))).Round(2)
}

// FineAmount is the surcharge for returning a book daysLate days late.
func FineAmount(dailyFee decimal.Decimal, daysLate int, multiplier decimal.Decimal) decimal.Decimal {
	return dailyFee.Mul(decimal.NewFromInt(int64(daysLate))).Mul(multiplier).Round(2)
}
