package event

import "time"

// NotificationPublished is the payload written to the notifications topic.
type NotificationPublished struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutSessionEvent is relayed from the payment provider's webhook.
type CheckoutSessionEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

const (
	CheckoutSessionCompleted = "checkout.session.completed"
	CheckoutSessionExpired   = "checkout.session.expired"
)
