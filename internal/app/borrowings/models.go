package borrowings

import (
	"time"

	"github.com/shopspring/decimal"

	"library/internal/domain"
)

type CreateBorrowingRequest struct {
	BookID             int64
	ExpectedReturnDate time.Time
}

type CreateBorrowingResult struct {
	Borrowing *domain.Borrowing
	// Payment is the borrowing payment. It is EXPIRED with no session when
	// SettlementErr is set.
	Payment       *domain.Payment
	SettlementErr error

	// UnresolvedPayments is set instead of Borrowing when the caller has to
	// settle earlier payments first.
	UnresolvedPayments []domain.Payment
	Detail             string
}

// Blocked reports whether the request was refused because of unresolved payments.
func (r *CreateBorrowingResult) Blocked() bool {
	return len(r.UnresolvedPayments) > 0
}

type ReturnBorrowingResult struct {
	Borrowing  *domain.Borrowing
	OverdueFee decimal.Decimal
	// Payment is the overdue fee payment, nil when the book came back on time.
	Payment       *domain.Payment
	SettlementErr error
}
