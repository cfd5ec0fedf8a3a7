package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusOpen    SessionStatus = "open"
	SessionStatusPaid    SessionStatus = "paid"
	SessionStatusExpired SessionStatus = "expired"
)

type CheckoutRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutProvider is the external payment provider.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetSessionStatus(ctx context.Context, sessionID string) (SessionStatus, error)
}

// Notifier announces events to staff. Delivery is best-effort.
type Notifier interface {
	Send(ctx context.Context, text string)
}
