package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusExpired PaymentStatus = "EXPIRED"
)

// Unresolved reports whether the payment still blocks its owner from borrowing.
func (s PaymentStatus) Unresolved() bool {
	return s == PaymentStatusPending || s == PaymentStatusExpired
}

type PaymentType string

const (
	PaymentTypeBorrowing  PaymentType = "BORROWING_PAYMENT"
	PaymentTypeOverdueFee PaymentType = "OVERDUE_FEE_PAYMENT"
)

// Label renders the type the way it is shown to people: "Overdue fee payment".
func (t PaymentType) Label() string {
	s := strings.ToLower(strings.ReplaceAll(string(t), "_", " "))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type Payment struct {
	ID          int64           `json:"id" db:"id"`
	BorrowingID int64           `json:"borrowing_id" db:"borrowing_id"`
	Type        PaymentType     `json:"payment_type" db:"payment_type"`
	Status      PaymentStatus   `json:"payment_status" db:"payment_status"`
	AmountToPay decimal.Decimal `json:"amount_to_pay" db:"amount_to_pay"`
	SessionID   string          `json:"session_id" db:"session_id"`
	SessionURL  string          `json:"session_url" db:"session_url"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type PaymentFilter struct {
	Status *PaymentStatus
	UserID *int64
}
