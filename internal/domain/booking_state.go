package domain

import "time"

// Legal lifecycle edges. Cancelled and completed have no outgoing edges.
var allowedTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
}

func CanTransition(from, to BookingStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NewPendingBooking builds the initial state of a booking whose price has
// already been computed and whose window has been checked.
func NewPendingBooking(id, carID, userID string, start, end time.Time, quote Quote, note string, now time.Time) Booking {
	return Booking{
		ID:              id,
		CarID:           carID,
		UserID:          userID,
		StartDate:       start,
		EndDate:         end,
		TotalPriceCents: quote.TotalPriceCents,
		Currency:        quote.Currency,
		RateApplied:     quote.RateApplied,
		Status:          BookingStatusPending,
		Note:            note,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// The methods below never modify the receiver: they return the next state
// or an error, so a failed guard leaves the stored booking untouched.

// Confirm is the customer payment path: pending -> confirmed once the
// payment intent is paid, references this booking and covers its total.
func (b Booking) Confirm(caller Caller, intent PaymentIntent, now time.Time) (Booking, error) {
	if !b.isParty(caller) {
		return Booking{}, b.invalid(BookingStatusConfirmed, "", ErrNotBookingParty)
	}
	if !CanTransition(b.Status, BookingStatusConfirmed) {
		return Booking{}, b.invalid(BookingStatusConfirmed, "", nil)
	}
	if intent.Status != PaymentStatusPaid {
		return Booking{}, &PaymentUnverifiedError{BookingID: b.ID, PaymentID: intent.PaymentID, Status: intent.Status}
	}
	// A paid intent only counts when it names this booking and covers its total.
	if intent.BookingRef != b.ID {
		return Booking{}, &PaymentUnverifiedError{
			BookingID: b.ID,
			PaymentID: intent.PaymentID,
			Status:    intent.Status,
			Err:       ErrPaymentMismatch,
		}
	}
	if intent.AmountCents < b.TotalPriceCents {
		return Booking{}, &PaymentUnverifiedError{
			BookingID: b.ID,
			PaymentID: intent.PaymentID,
			Status:    intent.Status,
			Err:       ErrPaymentAmountMismatch,
		}
	}

	next := b.moveTo(BookingStatusConfirmed, now)
	paymentID := intent.PaymentID
	next.PaymentID = &paymentID
	return next, nil
}

// Approve is the owner's manual path to confirmed; it bypasses payment.
func (b Booking) Approve(caller Caller, now time.Time) (Booking, error) {
	if !caller.IsOwner() {
		return Booking{}, b.invalid(BookingStatusConfirmed, "", ErrNotOwner)
	}
	if !CanTransition(b.Status, BookingStatusConfirmed) {
		return Booking{}, b.invalid(BookingStatusConfirmed, "", nil)
	}
	return b.moveTo(BookingStatusConfirmed, now), nil
}

// Reject is the owner declining a pending request.
func (b Booking) Reject(caller Caller, reason string, now time.Time) (Booking, error) {
	if !caller.IsOwner() {
		return Booking{}, b.invalid(BookingStatusCancelled, "", ErrNotOwner)
	}
	if b.Status != BookingStatusPending {
		return Booking{}, b.invalid(BookingStatusCancelled, "only pending bookings can be rejected", nil)
	}
	next := b.moveTo(BookingStatusCancelled, now)
	next.CancelReason = reason
	return next, nil
}

// Cancel withdraws a booking. Pending bookings can always be cancelled;
// confirmed ones only until grace before the rental starts.
func (b Booking) Cancel(caller Caller, reason string, grace time.Duration, now time.Time) (Booking, error) {
	if !b.isParty(caller) && !caller.IsSystem() {
		return Booking{}, b.invalid(BookingStatusCancelled, "", ErrNotBookingParty)
	}
	if !CanTransition(b.Status, BookingStatusCancelled) {
		return Booking{}, b.invalid(BookingStatusCancelled, "", nil)
	}
	if b.Status == BookingStatusConfirmed && !now.Before(b.StartDate.Add(-grace)) {
		return Booking{}, b.invalid(BookingStatusCancelled, "", ErrCancellationWindowClosed)
	}
	next := b.moveTo(BookingStatusCancelled, now)
	next.CancelReason = reason
	return next, nil
}

// Complete closes a confirmed rental.
func (b Booking) Complete(caller Caller, now time.Time) (Booking, error) {
	if !caller.IsOwner() {
		return Booking{}, b.invalid(BookingStatusCompleted, "", ErrNotOwner)
	}
	if !CanTransition(b.Status, BookingStatusCompleted) {
		return Booking{}, b.invalid(BookingStatusCompleted, "", nil)
	}
	return b.moveTo(BookingStatusCompleted, now), nil
}

func (b Booking) isParty(caller Caller) bool {
	return caller.IsOwner() || (caller.UserID != "" && caller.UserID == b.UserID)
}

func (b Booking) moveTo(to BookingStatus, now time.Time) Booking {
	next := b
	next.Status = to
	next.UpdatedAt = now
	return next
}

func (b Booking) invalid(to BookingStatus, reason string, err error) *InvalidTransitionError {
	return &InvalidTransitionError{BookingID: b.ID, From: b.Status, To: to, Reason: reason, Err: err}
}
