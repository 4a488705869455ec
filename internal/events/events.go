// Package events announces booking lifecycle changes to other systems.
package events

import (
	"context"
	"errors"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"

	"github.com/google/uuid"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingConfirmed Type = "booking.confirmed"
	BookingCancelled Type = "booking.cancelled"
	BookingCompleted Type = "booking.completed"
)

// TypeFor maps the status a booking just entered to its event type.
func TypeFor(status domain.BookingStatus) Type {
	switch status {
	case domain.BookingStatusConfirmed:
		return BookingConfirmed
	case domain.BookingStatusCancelled:
		return BookingCancelled
	case domain.BookingStatusCompleted:
		return BookingCompleted
	default:
		return BookingCreated
	}
}

type Event struct {
	ID              string               `json:"id"`
	Type            Type                 `json:"type"`
	BookingID       string               `json:"booking_id"`
	CarID           string               `json:"car_id"`
	UserID          string               `json:"user_id"`
	Status          domain.BookingStatus `json:"status"`
	StartDate       time.Time            `json:"start_date"`
	EndDate         time.Time            `json:"end_date"`
	TotalPriceCents int64                `json:"total_price_cents"`
	Currency        string               `json:"currency"`
	Reason          string               `json:"reason,omitempty"`
	OccurredAt      time.Time            `json:"occurred_at"`
}

func NewEvent(t Type, b *domain.Booking, at time.Time) Event {
	return Event{
		ID:              uuid.NewString(),
		Type:            t,
		BookingID:       b.ID,
		CarID:           b.CarID,
		UserID:          b.UserID,
		Status:          b.Status,
		StartDate:       b.StartDate,
		EndDate:         b.EndDate,
		TotalPriceCents: b.TotalPriceCents,
		Currency:        b.Currency,
		Reason:          b.CancelReason,
		OccurredAt:      at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout delivers each event to every publisher, even when some fail.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher records events in the application log. It is the default when
// no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, e Event) error {
	logger.InfoContext(ctx, "Booking event", "type", e.Type, "eventID", e.ID, "bookingID", e.BookingID, "status", e.Status)
	return nil
}
