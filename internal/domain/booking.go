package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Blocking reports whether a booking in this status still reserves its calendar days.
func (s BookingStatus) Blocking() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// Terminal reports whether no transition may leave this status.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

type Booking struct {
	ID     string `json:"id"`
	CarID  string `json:"car_id"`
	UserID string `json:"user_id"`
	// Half-open rental range [StartDate, EndDate).
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	// Price snapshot, frozen when the booking is created.
	TotalPriceCents int64         `json:"total_price_cents"`
	Currency        string        `json:"currency"`
	RateApplied     RateTier      `json:"rate_applied"`
	Status          BookingStatus `json:"status"`
	PaymentID       *string       `json:"payment_id,omitempty"`
	Note            string        `json:"note,omitempty"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Window returns the reservation window this booking occupies.
func (b *Booking) Window() ReservationWindow {
	return ReservationWindow{
		BookingID: b.ID,
		CarID:     b.CarID,
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
		Status:    b.Status,
	}
}

// ReservationWindow is the slice of a booking the availability check needs.
type ReservationWindow struct {
	BookingID string        `json:"booking_id"`
	CarID     string        `json:"car_id"`
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Status    BookingStatus `json:"status"`
}
