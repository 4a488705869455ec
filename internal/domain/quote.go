package domain

import "time"

// Quote is the output of the price calculator for one car and range.
type Quote struct {
	CarID           string    `json:"car_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Days            int       `json:"days"`
	SubtotalCents   int64     `json:"subtotal_cents"`
	DiscountCents   int64     `json:"discount_cents"`
	TotalPriceCents int64     `json:"total_price_cents"`
	RateApplied     RateTier  `json:"rate_applied"`
	Currency        string    `json:"currency"`
}
