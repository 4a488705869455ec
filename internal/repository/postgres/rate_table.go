package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

// The Supabase schema predates the booking core: cars store prices as numeric
// major units in price_per_day, and seasonal overrides live in car_seasonal_rates.
type rateTableRepository struct {
	db *sql.DB
}

func NewRateTableRepository(db *sql.DB) repository.RateTableRepository {
	return &rateTableRepository{db: db}
}

func (r *rateTableRepository) Get(ctx context.Context, carID string) (*domain.RateTable, error) {
	logger.EnterMethod("rateTableRepository.Get", "carID", carID)

	query := `
		SELECT price_per_day, COALESCE(currency, 'USD'), weekly_discount_pct, monthly_discount_pct
		FROM cars WHERE id = $1
	`
	var (
		pricePerDay sql.NullFloat64
		weekly      sql.NullFloat64
		monthly     sql.NullFloat64
	)
	rt := &domain.RateTable{CarID: carID}
	logger.DatabaseCall("SELECT", "cars", "carID", carID)
	err := r.db.QueryRowContext(ctx, query, carID).Scan(&pricePerDay, &rt.Currency, &weekly, &monthly)
	if errors.Is(err, sql.ErrNoRows) {
		logger.ExitMethod("rateTableRepository.Get", "carID", carID, "found", false)
		return nil, repository.ErrNotFound
	}
	if err != nil {
		logger.ExitMethodWithError("rateTableRepository.Get", err, "carID", carID)
		return nil, err
	}

	// A NULL price leaves the table without a base entry, which the pricing
	// layer reports as a rate configuration error.
	if pricePerDay.Valid {
		rt.Entries = append(rt.Entries, domain.RateEntry{DailyPriceCents: toCents(pricePerDay.Float64)})
	}
	if weekly.Valid {
		rt.WeeklyDiscountPct = &weekly.Float64
	}
	if monthly.Valid {
		rt.MonthlyDiscountPct = &monthly.Float64
	}

	seasonQuery := `
		SELECT start_date, end_date, price_per_day
		FROM car_seasonal_rates WHERE car_id = $1
		ORDER BY start_date
	`
	rows, err := r.db.QueryContext(ctx, seasonQuery, carID)
	if err != nil {
		logger.ExitMethodWithError("rateTableRepository.Get", err, "carID", carID)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			start, end time.Time
			price      float64
		)
		if err := rows.Scan(&start, &end, &price); err != nil {
			logger.ExitMethodWithError("rateTableRepository.Get", err, "carID", carID)
			return nil, err
		}
		rt.Entries = append(rt.Entries, domain.RateEntry{
			StartDate:       &start,
			EndDate:         &end,
			DailyPriceCents: toCents(price),
		})
	}
	if err := rows.Err(); err != nil {
		logger.ExitMethodWithError("rateTableRepository.Get", err, "carID", carID)
		return nil, err
	}

	logger.ExitMethod("rateTableRepository.Get", "carID", carID, "entries", len(rt.Entries))
	return rt, nil
}

func toCents(major float64) int64 {
	return int64(math.Round(major * 100))
}
