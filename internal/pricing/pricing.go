package pricing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"carrental-backend/internal/domain"
)

const (
	day = 24 * time.Hour

	// Minimum rental length, in days, for each discount tier.
	WeeklyThresholdDays  = 7
	MonthlyThresholdDays = 30
)

// ResolveDailyRate returns the daily price in effect on the calendar day of
// date: the seasonal entry covering it, else the base rate.
func ResolveDailyRate(rt *domain.RateTable, date time.Time) (int64, error) {
	base, ok := rt.Base()
	if !ok {
		return 0, &domain.RateConfigError{CarID: rt.CarID, Reason: "missing base rate"}
	}
	for _, e := range rt.Entries {
		if e.Covers(date) {
			return e.DailyPriceCents, nil
		}
	}
	return base.DailyPriceCents, nil
}

// DurationDays counts billable days in [start, end). Any started day is billed.
func DurationDays(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}

// CalculatePrice prices a rental of [start, end) against the rate table.
//
// Every billable day is priced with ResolveDailyRate. Rentals of 30+ days get
// the monthly discount and rentals of 7+ days the weekly one, when the table
// defines them; the monthly tier is checked first. Rounding to whole cents
// happens once, after the discount.
func CalculatePrice(rt *domain.RateTable, start, end time.Time) (domain.Quote, error) {
	if !start.Before(end) {
		return domain.Quote{}, &domain.InvalidRangeError{Start: start, End: end, Reason: "start date must be before end date"}
	}

	days := DurationDays(start, end)
	var subtotal int64
	for i := 0; i < days; i++ {
		rate, err := ResolveDailyRate(rt, start.UTC().AddDate(0, 0, i))
		if err != nil {
			return domain.Quote{}, err
		}
		subtotal += rate
	}

	tier := domain.RateTierDaily
	total := subtotal
	switch {
	case days >= MonthlyThresholdDays && rt.MonthlyDiscountPct != nil:
		tier = domain.RateTierMonthly
		total = applyDiscount(subtotal, *rt.MonthlyDiscountPct)
	case days >= WeeklyThresholdDays && rt.WeeklyDiscountPct != nil:
		tier = domain.RateTierWeekly
		total = applyDiscount(subtotal, *rt.WeeklyDiscountPct)
	}

	return domain.Quote{
		CarID:           rt.CarID,
		StartDate:       start,
		EndDate:         end,
		Days:            days,
		SubtotalCents:   subtotal,
		DiscountCents:   subtotal - total,
		TotalPriceCents: total,
		RateApplied:     tier,
		Currency:        rt.Currency,
	}, nil
}

func applyDiscount(cents int64, pct float64) int64 {
	return int64(math.Round(float64(cents) * (1 - pct)))
}

// ParseDate accepts RFC3339 timestamps or yyyy-mm-dd dates (midnight UTC).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-mm-dd or RFC3339", s)
	}
	return t, nil
}
