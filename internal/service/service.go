package service

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
)

// InitBookingRequest carries a customer's reservation request. UserID is the
// authenticated caller, resolved by the transport layer.
type InitBookingRequest struct {
	CarID     string
	UserID    string
	StartDate time.Time
	EndDate   time.Time
	Note      string
}

// BookingService drives bookings through their lifecycle. Every error it
// returns is one of the domain error kinds.
type BookingService interface {
	InitBooking(ctx context.Context, req InitBookingRequest) (*domain.Booking, error)
	ConfirmBooking(ctx context.Context, caller domain.Caller, bookingID, paymentID string) (*domain.Booking, error)
	ApproveBooking(ctx context.Context, caller domain.Caller, bookingID string) (*domain.Booking, error)
	RejectBooking(ctx context.Context, caller domain.Caller, bookingID, reason string) (*domain.Booking, error)
	CompleteBooking(ctx context.Context, caller domain.Caller, bookingID string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, caller domain.Caller, bookingID, reason string) (*domain.Booking, error)
	GetBooking(ctx context.Context, caller domain.Caller, bookingID string) (*domain.Booking, error)
	QuotePrice(ctx context.Context, carID string, start, end time.Time) (*domain.Quote, error)
	// ExpireStalePending cancels pending bookings created before the cutoff
	// and reports how many it cancelled.
	ExpireStalePending(ctx context.Context, createdBefore time.Time) (int, error)
}
