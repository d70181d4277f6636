package utils

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maziwacoop/settlement-engine/internal/domain"
)

// LiterEpsilon is the tolerance below which a liter difference is treated as
// zero, so a weighing that matches to the gram never registers a variance
// from floating error.
const LiterEpsilon = 0.001

// RoundMoney rounds a monetary amount to 2 decimal places, half up.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// MoneyFromLiters converts a liter quantity at a per-liter rate into a
// rounded monetary amount.
func MoneyFromLiters(liters float64, ratePerLiter decimal.Decimal) decimal.Decimal {
	return RoundMoney(decimal.NewFromFloat(liters).Mul(ratePerLiter))
}

// LitersEqual reports whether two liter quantities are equal within LiterEpsilon.
func LitersEqual(a, b float64) bool {
	return math.Abs(a-b) < LiterEpsilon
}

// MinDecimal returns the smaller of two amounts.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// NextApplyDate advances a recurring deduction due date by one period.
// Monthly advances by one calendar month, so the 31st rolls naturally per
// time.AddDate semantics.
func NextApplyDate(frequency string, from time.Time) time.Time {
	switch frequency {
	case domain.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case domain.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case domain.FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from
	}
}

// DateOnly truncates a timestamp to midnight UTC for DATE-column comparisons.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
