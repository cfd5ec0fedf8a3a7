package notify

import (
	"fmt"
	"strings"

	"library/internal/domain"
)

// PaymentReceived is the staff message for a payment that became PAID.
func PaymentReceived(b *domain.Borrowing, p *domain.Payment) string {
	return fmt.Sprintf("💸 Payment received\nUser %s has made %s $%s for the book: '%s'",
		b.Borrower(), strings.ToLower(p.Type.Label()), p.AmountToPay.StringFixed(2), b.BookTitle())
}
