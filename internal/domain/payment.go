package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentIntent is owned by the payment provider; bookings only read its status.
type PaymentIntent struct {
	PaymentID   string        `json:"payment_id"`
	BookingRef  string        `json:"booking_ref"`
	AmountCents int64         `json:"amount_cents"`
	Status      PaymentStatus `json:"status"`
	ExpiresAt   time.Time     `json:"expires_at"`
}
