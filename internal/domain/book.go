package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type CoverType string

const (
	CoverHard CoverType = "HARD"
	CoverSoft CoverType = "SOFT"
)

// MinDailyFee is the lowest daily fee a catalog entry may carry.
var MinDailyFee = decimal.RequireFromString("0.50")

type Book struct {
	ID       int64           `json:"id" db:"id"`
	Title    string          `json:"title" db:"title"`
	Author   string          `json:"author" db:"author"`
	Cover    CoverType       `json:"cover" db:"cover"`
	Copies   int             `json:"copies" db:"copies"`
	DailyFee decimal.Decimal `json:"daily_fee" db:"daily_fee"`
}

func NewBook(title, author string, cover CoverType, copies int, dailyFee decimal.Decimal) (*Book, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)

	switch {
	case title == "":
		return nil, NewValidationError("title", "This field may not be blank.")
	case author == "":
		return nil, NewValidationError("author", "This field may not be blank.")
	case cover != CoverHard && cover != CoverSoft:
		return nil, NewValidationError("cover", "Cover must be HARD or SOFT.")
	case copies < 0:
		return nil, NewValidationError("copies", "Copies cannot be negative.")
	case dailyFee.LessThan(MinDailyFee):
		return nil, NewValidationError("daily_fee", "Daily fee must be at least $0.50")
	}

	return &Book{
		Title:    title,
		Author:   author,
		Cover:    cover,
		Copies:   copies,
		DailyFee: dailyFee.Round(2),
	}, nil
}
