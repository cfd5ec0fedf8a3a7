// Package fees computes borrowing prices and overdue fines.
//
// All amounts are exact decimals; dates are compared as calendar days.
package fees

import (
	"time"

	"github.com/shopspring/decimal"

	"library/internal/domain"
)

// DaysBetween returns the number of calendar days from one date to another.
// The result is negative when to is before from.
func DaysBetween(from, to time.Time) int {
	return int(domain.DateOf(to).Sub(domain.DateOf(from)).Hours() / 24)
}

// BorrowingPrice is the daily fee times the number of days a book is booked for.
func BorrowingPrice(dailyFee decimal.Decimal, borrowDate, expectedReturnDate time.Time) decimal.Decimal {
	days := DaysBetween(borrowDate, expectedReturnDate)
	if days < 0 {
		days = 0
	}
	return dailyFee.Mul(decimal.NewFromInt(int64(days))).Round(2)
}

// OverdueDays is how many days today is past the expected return date, never negative.
func OverdueDays(expectedReturnDate, today time.Time) int {
	days := DaysBetween(expectedReturnDate, today)
	if days < 0 {
		return 0
	}
	return days
}

func OverdueFee(dailyFee decimal.Decimal, overdueDays int) decimal.Decimal {
	if overdueDays <= 0 {
		return decimal.Zero
	}
	return dailyFee.Mul(decimal.NewFromInt(int64(overdueDays))).Round(2)
}
