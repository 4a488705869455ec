package docstore

import (
	"fmt"
	"math"
	"time"

	"carrental-backend/internal/domain"
)

// Car documents were written by several generations of the admin UI, so the
// same value can appear under a snake_case or camelCase key, and prices are
// major currency units. Everything below converts that into domain types.

var (
	priceKeys       = []string{"price_per_day", "pricePerDay", "daily_price", "dailyPrice"}
	weeklyKeys      = []string{"weekly_discount_pct", "weeklyDiscountPct", "weekly_discount", "weeklyDiscount"}
	monthlyKeys     = []string{"monthly_discount_pct", "monthlyDiscountPct", "monthly_discount", "monthlyDiscount"}
	seasonalKeys    = []string{"seasonal_rates", "seasonalRates"}
	seasonStartKeys = []string{"start_date", "startDate"}
	seasonEndKeys   = []string{"end_date", "endDate"}
	currencyKeys    = []string{"currency"}
)

func lookup(data map[string]interface{}, keys []string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := data[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, t)
		}
		return parsed, err == nil
	}
	return time.Time{}, false
}

func toCents(major float64) int64 {
	return int64(math.Round(major * 100))
}

// discountFraction accepts either a fraction (0.15) or a whole percentage (15).
func discountFraction(v interface{}) (*float64, bool) {
	f, ok := toFloat(v)
	if !ok {
		return nil, false
	}
	if f > 1 {
		f /= 100
	}
	return &f, true
}

// rateTableFromCarData builds a RateTable from a car document. Malformed
// fields yield a RateConfigError; a missing price simply leaves no base entry.
func rateTableFromCarData(carID string, data map[string]interface{}) (*domain.RateTable, error) {
	rt := &domain.RateTable{CarID: carID, Currency: "USD"}

	if v, ok := lookup(data, currencyKeys); ok {
		if s, ok := v.(string); ok && s != "" {
			rt.Currency = s
		}
	}

	if v, ok := lookup(data, priceKeys); ok {
		price, ok := toFloat(v)
		if !ok {
			return nil, &domain.RateConfigError{CarID: carID, Reason: fmt.Sprintf("daily price has type %T", v)}
		}
		rt.Entries = append(rt.Entries, domain.RateEntry{DailyPriceCents: toCents(price)})
	}

	if v, ok := lookup(data, weeklyKeys); ok {
		pct, ok := discountFraction(v)
		if !ok {
			return nil, &domain.RateConfigError{CarID: carID, Reason: fmt.Sprintf("weekly discount has type %T", v)}
		}
		rt.WeeklyDiscountPct = pct
	}
	if v, ok := lookup(data, monthlyKeys); ok {
		pct, ok := discountFraction(v)
		if !ok {
			return nil, &domain.RateConfigError{CarID: carID, Reason: fmt.Sprintf("monthly discount has type %T", v)}
		}
		rt.MonthlyDiscountPct = pct
	}

	if v, ok := lookup(data, seasonalKeys); ok {
		seasons, ok := v.([]interface{})
		if !ok {
			return nil, &domain.RateConfigError{CarID: carID, Reason: "seasonal rates must be a list"}
		}
		for i, raw := range seasons {
			entry, err := seasonalEntry(raw)
			if err != nil {
				return nil, &domain.RateConfigError{CarID: carID, Reason: fmt.Sprintf("seasonal rate %d: %v", i, err)}
			}
			rt.Entries = append(rt.Entries, entry)
		}
	}

	return rt, nil
}

func seasonalEntry(raw interface{}) (domain.RateEntry, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return domain.RateEntry{}, fmt.Errorf("expected a map, got %T", raw)
	}
	sv, _ := lookup(m, seasonStartKeys)
	start, ok := toTime(sv)
	if !ok {
		return domain.RateEntry{}, fmt.Errorf("missing or invalid start date")
	}
	ev, _ := lookup(m, seasonEndKeys)
	end, ok := toTime(ev)
	if !ok {
		return domain.RateEntry{}, fmt.Errorf("missing or invalid end date")
	}
	pv, _ := lookup(m, priceKeys)
	price, ok := toFloat(pv)
	if !ok {
		return domain.RateEntry{}, fmt.Errorf("missing or invalid daily price")
	}
	return domain.RateEntry{StartDate: &start, EndDate: &end, DailyPriceCents: toCents(price)}, nil
}

// bookingDoc is the stored shape of a booking document.
type bookingDoc struct {
	CarID           string    `firestore:"car_id"`
	UserID          string    `firestore:"user_id"`
	StartDate       time.Time `firestore:"start_date"`
	EndDate         time.Time `firestore:"end_date"`
	TotalPriceCents int64     `firestore:"total_price_cents"`
	Currency        string    `firestore:"currency"`
	RateApplied     string    `firestore:"rate_applied"`
	Status          string    `firestore:"status"`
	PaymentID       *string   `firestore:"payment_id"`
	Note            string    `firestore:"note,omitempty"`
	CancelReason    string    `firestore:"cancel_reason,omitempty"`
	CreatedAt       time.Time `firestore:"created_at"`
	UpdatedAt       time.Time `firestore:"updated_at"`
}

func toBookingDoc(b *domain.Booking) bookingDoc {
	return bookingDoc{
		CarID:           b.CarID,
		UserID:          b.UserID,
		StartDate:       b.StartDate.UTC(),
		EndDate:         b.EndDate.UTC(),
		TotalPriceCents: b.TotalPriceCents,
		Currency:        b.Currency,
		RateApplied:     string(b.RateApplied),
		Status:          string(b.Status),
		PaymentID:       b.PaymentID,
		Note:            b.Note,
		CancelReason:    b.CancelReason,
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
	}
}

func (d bookingDoc) toDomain(id string) domain.Booking {
	return domain.Booking{
		ID:              id,
		CarID:           d.CarID,
		UserID:          d.UserID,
		StartDate:       d.StartDate,
		EndDate:         d.EndDate,
		TotalPriceCents: d.TotalPriceCents,
		Currency:        d.Currency,
		RateApplied:     domain.RateTier(d.RateApplied),
		Status:          domain.BookingStatus(d.Status),
		PaymentID:       d.PaymentID,
		Note:            d.Note,
		CancelReason:    d.CancelReason,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
