package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotOwner                 = errors.New("owner role required")
	ErrNotBookingParty          = errors.New("caller is not a party to this booking")
	ErrCancellationWindowClosed = errors.New("cancellation window has closed")
	ErrPaymentMismatch          = errors.New("payment does not belong to this booking")
	ErrPaymentAmountMismatch    = errors.New("payment amount is less than the booking total")
)

// InvalidRangeError reports user-correctable date input.
type InvalidRangeError struct {
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range [%s, %s): %s",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Reason)
}

// SlotUnavailableError reports that the requested range collides with a
// blocking reservation. Conflict is nil when the store rejected the insert
// without telling us which window won.
type SlotUnavailableError struct {
	CarID    string
	Start    time.Time
	End      time.Time
	Conflict *ReservationWindow
}

func (e *SlotUnavailableError) Error() string {
	if e.Conflict != nil {
		return fmt.Sprintf("car %s is not available for [%s, %s): conflicts with booking %s",
			e.CarID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Conflict.BookingID)
	}
	return fmt.Sprintf("car %s is not available for [%s, %s)",
		e.CarID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// RateConfigError means the car's rate data is broken. It is not retryable
// and its detail must not reach customers.
type RateConfigError struct {
	CarID  string
	Reason string
}

func (e *RateConfigError) Error() string {
	return fmt.Sprintf("rate table for car %s is misconfigured: %s", e.CarID, e.Reason)
}

type InvalidTransitionError struct {
	BookingID string
	From      BookingStatus
	To        BookingStatus
	Reason    string
	Err       error
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("booking %s: invalid transition %s -> %s", e.BookingID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() error {
	return e.Err
}

// PaymentUnverifiedError means the payment could not be shown to be paid yet.
// Status is empty when the gateway could not be reached in time.
type PaymentUnverifiedError struct {
	BookingID string
	PaymentID string
	Status    PaymentStatus
	Err       error
}

func (e *PaymentUnverifiedError) Error() string {
	status := string(e.Status)
	if status == "" {
		status = "unknown"
	}
	msg := fmt.Sprintf("payment %s for booking %s not verified (status %s)", e.PaymentID, e.BookingID, status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PaymentUnverifiedError) Unwrap() error {
	return e.Err
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// CollaboratorError wraps an infrastructure failure in a store or gateway.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
