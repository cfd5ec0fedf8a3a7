package response

import (
	"github.com/samber/lo"

	"library/internal/domain"
)

type Book struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Cover    string `json:"cover"`
	Copies   int    `json:"copies"`
	DailyFee string `json:"daily_fee"`
}

func NewBook(b *domain.Book) Book {
	return Book{
		ID:       b.ID,
		Title:    b.Title,
		Author:   b.Author,
		Cover:    string(b.Cover),
		Copies:   b.Copies,
		DailyFee: b.DailyFee.StringFixed(2),
	}
}

func NewBooks(books []domain.Book) []Book {
	return lo.Map(books, func(b domain.Book, _ int) Book { return NewBook(&b) })
}

type Borrowing struct {
	ID                 int64   `json:"id"`
	UserID             int64   `json:"user"`
	Book               *Book   `json:"book,omitempty"`
	BorrowDate         string  `json:"borrow_date"`
	ExpectedReturnDate string  `json:"expected_return_date"`
	ActualReturnDate   *string `json:"actual_return_date"`
	IsActive           bool    `json:"is_active"`
}

func NewBorrowing(b *domain.Borrowing) Borrowing {
	out := Borrowing{
		ID:                 b.ID,
		UserID:             b.UserID,
		BorrowDate:         b.BorrowDate.Format(dateLayout),
		ExpectedReturnDate: b.ExpectedReturnDate.Format(dateLayout),
		IsActive:           b.IsActive,
	}
	if b.Book != nil {
		book := NewBook(b.Book)
		out.Book = &book
	}
	if b.ActualReturnDate != nil {
		out.ActualReturnDate = lo.ToPtr(b.ActualReturnDate.Format(dateLayout))
	}
	return out
}

func NewBorrowings(borrowings []domain.Borrowing) []Borrowing {
	return lo.Map(borrowings, func(b domain.Borrowing, _ int) Borrowing { return NewBorrowing(&b) })
}

type Payment struct {
	ID          int64  `json:"id"`
	Status      string `json:"payment_status"`
	Type        string `json:"payment_type"`
	BorrowingID int64  `json:"borrowing"`
	AmountToPay string `json:"amount_to_pay"`
	SessionID   string `json:"session_id"`
	SessionURL  string `json:"session_url"`
}

func NewPayment(p *domain.Payment) Payment {
	return Payment{
		ID:          p.ID,
		Status:      string(p.Status),
		Type:        string(p.Type),
		BorrowingID: p.BorrowingID,
		AmountToPay: p.AmountToPay.StringFixed(2),
		SessionID:   p.SessionID,
		SessionURL:  p.SessionURL,
	}
}

func NewPayments(payments []domain.Payment) []Payment {
	return lo.Map(payments, func(p domain.Payment, _ int) Payment { return NewPayment(&p) })
}

// SessionURLs lists the redirect urls of payments that have one.
func SessionURLs(payments []domain.Payment) []string {
	return lo.FilterMap(payments, func(p domain.Payment, _ int) (string, bool) {
		return p.SessionURL, p.SessionURL != ""
	})
}
