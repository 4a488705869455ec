package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carrental-backend/internal/config"
	"carrental-backend/internal/repository"

	"github.com/lib/pq"
)

// Store is the Supabase/Postgres backend.
type Store struct {
	db       *sql.DB
	rates    repository.RateTableRepository
	bookings repository.ReservationRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		rates:    NewRateTableRepository(db),
		bookings: NewReservationRepository(db),
	}
}

// Open connects to the database described by cfg and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewStore(db), nil
}

func (s *Store) RateTableRepository() repository.RateTableRepository {
	return s.rates
}

func (s *Store) ReservationRepository() repository.ReservationRepository {
	return s.bookings
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

const (
	codeSerializationFailure = "40001"
	codeExclusionViolation   = "23P01"
)

// mapWriteError turns the Postgres errors a concurrent overlapping insert
// produces into repository.ErrSlotConflict.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeExclusionViolation:
			return repository.ErrSlotConflict
		}
	}
	return err
}
