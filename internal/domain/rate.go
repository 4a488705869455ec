package domain

import (
	"fmt"
	"sort"
	"time"
)

type RateTier string

const (
	RateTierDaily   RateTier = "daily"
	RateTierWeekly  RateTier = "weekly"
	RateTierMonthly RateTier = "monthly"
)

// RateEntry is either the base rate (no dates) or a seasonal override
// covering [StartDate, EndDate] inclusive, by calendar day.
type RateEntry struct {
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	DailyPriceCents int64      `json:"daily_price_cents"`
}

func (e RateEntry) IsBase() bool {
	return e.StartDate == nil && e.EndDate == nil
}

// Covers reports whether a seasonal entry applies on the calendar day of t.
func (e RateEntry) Covers(t time.Time) bool {
	if e.IsBase() || e.StartDate == nil || e.EndDate == nil {
		return false
	}
	d := CalendarDay(t)
	return !d.Before(CalendarDay(*e.StartDate)) && !d.After(CalendarDay(*e.EndDate))
}

type RateTable struct {
	CarID              string      `json:"car_id"`
	Currency           string      `json:"currency"`
	Entries            []RateEntry `json:"entries"`
	WeeklyDiscountPct  *float64    `json:"weekly_discount_pct,omitempty"`
	MonthlyDiscountPct *float64    `json:"monthly_discount_pct,omitempty"`
}

// Base returns the undated entry, or false when the table has none.
func (rt *RateTable) Base() (RateEntry, bool) {
	for _, e := range rt.Entries {
		if e.IsBase() {
			return e, true
		}
	}
	return RateEntry{}, false
}

// Seasonal returns the dated entries ordered by start date.
func (rt *RateTable) Seasonal() []RateEntry {
	var out []RateEntry
	for _, e := range rt.Entries {
		if !e.IsBase() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.Before(*out[j].StartDate)
	})
	return out
}

// Validate checks the integrity rules owner tooling must respect when editing a table.
func (rt *RateTable) Validate() error {
	bases := 0
	for _, e := range rt.Entries {
		if e.DailyPriceCents < 0 {
			return &RateConfigError{CarID: rt.CarID, Reason: "negative daily price"}
		}
		if e.IsBase() {
			bases++
			continue
		}
		if e.StartDate == nil || e.EndDate == nil {
			return &RateConfigError{CarID: rt.CarID, Reason: "seasonal entry must have both start and end date"}
		}
		if CalendarDay(*e.EndDate).Before(CalendarDay(*e.StartDate)) {
			return &RateConfigError{CarID: rt.CarID, Reason: "seasonal entry ends before it starts"}
		}
	}
	switch {
	case bases == 0:
		return &RateConfigError{CarID: rt.CarID, Reason: "missing base rate"}
	case bases > 1:
		return &RateConfigError{CarID: rt.CarID, Reason: fmt.Sprintf("%d base rates, expected exactly one", bases)}
	}

	seasonal := rt.Seasonal()
	for i := 1; i < len(seasonal); i++ {
		prev, cur := seasonal[i-1], seasonal[i]
		if !CalendarDay(*cur.StartDate).After(CalendarDay(*prev.EndDate)) {
			return &RateConfigError{
				CarID:  rt.CarID,
				Reason: fmt.Sprintf("seasonal windows overlap at %s", cur.StartDate.Format("2006-01-02")),
			}
		}
	}

	for name, pct := range map[string]*float64{"weekly": rt.WeeklyDiscountPct, "monthly": rt.MonthlyDiscountPct} {
		if pct != nil && (*pct < 0 || *pct >= 1) {
			return &RateConfigError{CarID: rt.CarID, Reason: fmt.Sprintf("%s discount must be in [0,1)", name)}
		}
	}
	return nil
}

// CalendarDay truncates t to midnight UTC of its UTC date.
func CalendarDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
