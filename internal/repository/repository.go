package repository

import (
	"context"
	"errors"
	"time"

	"carrental-backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrSlotConflict means another blocking booking took an overlapping range
	// between the availability check and the insert.
	ErrSlotConflict = errors.New("overlapping reservation exists")
	// ErrStatusConflict means the booking was no longer in the expected status
	// when the conditional update ran.
	ErrStatusConflict = errors.New("booking status changed concurrently")
)

type RateTableRepository interface {
	Get(ctx context.Context, carID string) (*domain.RateTable, error)
}

type ReservationRepository interface {
	// ListBlocking returns the pending and confirmed windows held on a car.
	ListBlocking(ctx context.Context, carID string) ([]domain.ReservationWindow, error)
	// InsertPending stores a new pending booking, failing with ErrSlotConflict
	// if an overlapping blocking booking exists at write time.
	InsertPending(ctx context.Context, booking *domain.Booking) error
	// UpdateStatus persists booking only if its stored status still equals from.
	UpdateStatus(ctx context.Context, booking *domain.Booking, from domain.BookingStatus) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	ListStalePending(ctx context.Context, createdBefore time.Time) ([]domain.Booking, error)
}

// Store bundles the repositories one backend provides.
type Store interface {
	RateTableRepository() RateTableRepository
	ReservationRepository() ReservationRepository
	Ping(ctx context.Context) error
	Close() error
}
