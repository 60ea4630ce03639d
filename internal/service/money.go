package service

import (
	"time"

	"github.com/shopspring/decimal"
)

const dueMonthLayout = "2006-01"

// toCents converts a positive amount with at most two decimal places whose
// cent value fits in an int64.
func toCents(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(2)) {
		return 0, ErrInvalidAmount
	}
	cents := amount.Shift(2)
	if !cents.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func validDueMonth(month string) bool {
	t, err := time.Parse(dueMonthLayout, month)
	return err == nil && t.Format(dueMonthLayout) == month
}
