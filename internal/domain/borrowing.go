package domain

import (
	"strconv"
	"time"
)

type Borrowing struct {
	ID                 int64      `json:"id" db:"id"`
	UserID             int64      `json:"user_id" db:"user_id"`
	UserEmail          string     `json:"user_email" db:"user_email"`
	BookID             int64      `json:"book_id" db:"book_id"`
	BorrowDate         time.Time  `json:"borrow_date" db:"borrow_date"`
	ExpectedReturnDate time.Time  `json:"expected_return_date" db:"expected_return_date"`
	ActualReturnDate   *time.Time `json:"actual_return_date" db:"actual_return_date"`
	IsActive           bool       `json:"is_active" db:"is_active"`

	// Book is filled by reads that join the catalog.
	Book *Book `json:"book,omitempty" db:"-"`
}

// Borrower is the label used for the patron in notification texts.
func (b *Borrowing) Borrower() string {
	if b.UserEmail != "" {
		return b.UserEmail
	}
	return "user #" + strconv.FormatInt(b.UserID, 10)
}

func (b *Borrowing) BookTitle() string {
	if b.Book != nil {
		return b.Book.Title
	}
	return "book #" + strconv.FormatInt(b.BookID, 10)
}

type BorrowingFilter struct {
	IsActive *bool
	UserID   *int64
}
