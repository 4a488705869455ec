package http

import (
	"reflect"
	"strings"
	"time"

	"carrental-backend/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type CreateBookingRequest struct {
	CarID     string `json:"car_id" validate:"required,max=64"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Note      string `json:"note" validate:"max=500"`
}

type ConfirmBookingRequest struct {
	PaymentID string `json:"payment_id" validate:"required,max=128"`
}

// ReasonRequest is the body of reject and cancel.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type BookingResponse struct {
	ID              string    `json:"id"`
	CarID           string    `json:"car_id"`
	UserID          string    `json:"user_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	TotalPriceCents int64     `json:"total_price_cents"`
	Currency        string    `json:"currency"`
	RateApplied     string    `json:"rate_applied"`
	Status          string    `json:"status"`
	PaymentID       string    `json:"payment_id,omitempty"`
	Note            string    `json:"note,omitempty"`
	CancelReason    string    `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	resp := BookingResponse{
		ID:              b.ID,
		CarID:           b.CarID,
		UserID:          b.UserID,
		StartDate:       b.StartDate,
		EndDate:         b.EndDate,
		TotalPriceCents: b.TotalPriceCents,
		Currency:        b.Currency,
		RateApplied:     string(b.RateApplied),
		Status:          string(b.Status),
		Note:            b.Note,
		CancelReason:    b.CancelReason,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.PaymentID != nil {
		resp.PaymentID = *b.PaymentID
	}
	return resp
}

type QuoteResponse struct {
	CarID           string    `json:"car_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Days            int       `json:"days"`
	SubtotalCents   int64     `json:"subtotal_cents"`
	DiscountCents   int64     `json:"discount_cents"`
	TotalPriceCents int64     `json:"total_price_cents"`
	RateApplied     string    `json:"rate_applied"`
	Currency        string    `json:"currency"`
}

func toQuoteResponse(q *domain.Quote) QuoteResponse {
	return QuoteResponse{
		CarID:           q.CarID,
		StartDate:       q.StartDate,
		EndDate:         q.EndDate,
		Days:            q.Days,
		SubtotalCents:   q.SubtotalCents,
		DiscountCents:   q.DiscountCents,
		TotalPriceCents: q.TotalPriceCents,
		RateApplied:     string(q.RateApplied),
		Currency:        q.Currency,
	}
}

type ConflictResponse struct {
	BookingID string    `json:"booking_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
}

type ErrorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	Conflict *ConflictResponse `json:"conflict,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// validationErrors maps failed fields to a short message, or nil when v is valid.
func validationErrors(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	fields := map[string]string{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
	} else {
		fields["body"] = err.Error()
	}
	return fields
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
