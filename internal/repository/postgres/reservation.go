package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type reservationRepository struct {
	db *sql.DB
}

func NewReservationRepository(db *sql.DB) repository.ReservationRepository {
	return &reservationRepository{db: db}
}

const bookingColumns = `id, car_id, user_id, start_date, end_date, total_price_cents, currency, rate_applied,
		       status, payment_id, COALESCE(note, ''), COALESCE(cancel_reason, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (*domain.Booking, error) {
	var (
		b         domain.Booking
		paymentID sql.NullString
	)
	err := s.Scan(&b.ID, &b.CarID, &b.UserID, &b.StartDate, &b.EndDate, &b.TotalPriceCents, &b.Currency, &b.RateApplied,
		&b.Status, &paymentID, &b.Note, &b.CancelReason, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		b.PaymentID = &paymentID.String
	}
	return &b, nil
}

func (r *reservationRepository) ListBlocking(ctx context.Context, carID string) ([]domain.ReservationWindow, error) {
	logger.EnterMethod("reservationRepository.ListBlocking", "carID", carID)

	query := `
		SELECT id, car_id, start_date, end_date, status
		FROM bookings
		WHERE car_id = $1 AND status IN ('pending', 'confirmed')
		ORDER BY start_date
	`
	rows, err := r.db.QueryContext(ctx, query, carID)
	if err != nil {
		logger.ExitMethodWithError("reservationRepository.ListBlocking", err, "carID", carID)
		return nil, err
	}
	defer rows.Close()

	var windows []domain.ReservationWindow
	for rows.Next() {
		var w domain.ReservationWindow
		if err := rows.Scan(&w.BookingID, &w.CarID, &w.StartDate, &w.EndDate, &w.Status); err != nil {
			logger.ExitMethodWithError("reservationRepository.ListBlocking", err, "carID", carID)
			return nil, err
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		logger.ExitMethodWithError("reservationRepository.ListBlocking", err, "carID", carID)
		return nil, err
	}

	logger.ExitMethod("reservationRepository.ListBlocking", "carID", carID, "count", len(windows))
	return windows, nil
}

// InsertPending re-checks for overlap and inserts inside one SERIALIZABLE
// transaction. Postgres aborts one of two racing transactions with 40001; the
// bookings_no_overlap exclusion constraint reports 23P01. Both become
// repository.ErrSlotConflict.
func (r *reservationRepository) InsertPending(ctx context.Context, b *domain.Booking) error {
	logger.EnterMethod("reservationRepository.InsertPending", "bookingID", b.ID, "carID", b.CarID)

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		logger.ExitMethodWithError("reservationRepository.InsertPending", err, "bookingID", b.ID)
		return err
	}
	defer tx.Rollback()

	overlapQuery := `
		SELECT id FROM bookings
		WHERE car_id = $1 AND status IN ('pending', 'confirmed')
		  AND start_date < $2 AND end_date > $3
		LIMIT 1
	`
	var conflictID string
	err = tx.QueryRowContext(ctx, overlapQuery, b.CarID, b.EndDate, b.StartDate).Scan(&conflictID)
	switch {
	case err == nil:
		logger.ExitMethod("reservationRepository.InsertPending", "bookingID", b.ID, "conflictsWith", conflictID)
		return repository.ErrSlotConflict
	case !errors.Is(err, sql.ErrNoRows):
		err = mapWriteError(err)
		logger.ExitMethodWithError("reservationRepository.InsertPending", err, "bookingID", b.ID)
		return err
	}

	insert := `
		INSERT INTO bookings (
			id, car_id, user_id, start_date, end_date, total_price_cents, currency, rate_applied,
			status, payment_id, note, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	logger.DatabaseCall("INSERT", "bookings", "bookingID", b.ID)
	res, err := tx.ExecContext(ctx, insert,
		b.ID, b.CarID, b.UserID, b.StartDate, b.EndDate, b.TotalPriceCents, b.Currency, string(b.RateApplied),
		string(b.Status), b.PaymentID, b.Note, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		err = mapWriteError(err)
		logger.DatabaseResult("INSERT", 0, err, "bookingID", b.ID)
		return err
	}
	affected, _ := res.RowsAffected()
	logger.DatabaseResult("INSERT", affected, nil, "bookingID", b.ID)

	if err := tx.Commit(); err != nil {
		err = mapWriteError(err)
		logger.ExitMethodWithError("reservationRepository.InsertPending", err, "bookingID", b.ID)
		return err
	}

	logger.ExitMethod("reservationRepository.InsertPending", "bookingID", b.ID)
	return nil
}

func (r *reservationRepository) UpdateStatus(ctx context.Context, b *domain.Booking, from domain.BookingStatus) error {
	logger.EnterMethod("reservationRepository.UpdateStatus", "bookingID", b.ID, "from", from, "to", b.Status)

	query := `
		UPDATE bookings SET
			status = $1,
			payment_id = $2,
			cancel_reason = $3,
			updated_at = $4
		WHERE id = $5 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		string(b.Status), b.PaymentID, b.CancelReason, b.UpdatedAt, b.ID, string(from),
	)
	if err != nil {
		logger.ExitMethodWithError("reservationRepository.UpdateStatus", err, "bookingID", b.ID)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		logger.ExitMethodWithError("reservationRepository.UpdateStatus", err, "bookingID", b.ID)
		return err
	}
	if affected == 0 {
		logger.ExitMethod("reservationRepository.UpdateStatus", "bookingID", b.ID, "updated", false)
		return repository.ErrStatusConflict
	}

	logger.ExitMethod("reservationRepository.UpdateStatus", "bookingID", b.ID, "updated", true)
	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	logger.EnterMethod("reservationRepository.GetByID", "bookingID", id)

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		logger.ExitMethod("reservationRepository.GetByID", "bookingID", id, "found", false)
		return nil, repository.ErrNotFound
	}
	if err != nil {
		logger.ExitMethodWithError("reservationRepository.GetByID", err, "bookingID", id)
		return nil, err
	}

	logger.ExitMethod("reservationRepository.GetByID", "bookingID", id)
	return b, nil
}

func (r *reservationRepository) ListStalePending(ctx context.Context, createdBefore time.Time) ([]domain.Booking, error) {
	logger.EnterMethod("reservationRepository.ListStalePending", "createdBefore", createdBefore)

	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, createdBefore)
	if err != nil {
		logger.ExitMethodWithError("reservationRepository.ListStalePending", err)
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			logger.ExitMethodWithError("reservationRepository.ListStalePending", err)
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		logger.ExitMethodWithError("reservationRepository.ListStalePending", err)
		return nil, err
	}

	logger.ExitMethod("reservationRepository.ListStalePending", "count", len(bookings))
	return bookings, nil
}
