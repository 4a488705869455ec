// Package memory is a single-process store for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"carrental-backend/internal/availability"
	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type Store struct {
	mu       sync.RWMutex
	rates    map[string]domain.RateTable
	bookings map[string]domain.Booking
}

func NewStore() *Store {
	return &Store{
		rates:    make(map[string]domain.RateTable),
		bookings: make(map[string]domain.Booking),
	}
}

// PutRateTable stores or replaces a car's rate table.
func (s *Store) PutRateTable(rt domain.RateTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[rt.CarID] = rt
}

func (s *Store) RateTableRepository() repository.RateTableRepository {
	return rateTables{s}
}

func (s *Store) ReservationRepository() repository.ReservationRepository {
	return reservations{s}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

type rateTables struct {
	s *Store
}

func (r rateTables) Get(ctx context.Context, carID string) (*domain.RateTable, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rt, ok := r.s.rates[carID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rt.Entries = append([]domain.RateEntry(nil), rt.Entries...)
	return &rt, nil
}

type reservations struct {
	s *Store
}

func (r reservations) ListBlocking(ctx context.Context, carID string) ([]domain.ReservationWindow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.blockingLocked(carID), nil
}

func (s *Store) blockingLocked(carID string) []domain.ReservationWindow {
	var windows []domain.ReservationWindow
	for _, b := range s.bookings {
		if b.CarID == carID && b.Status.Blocking() {
			windows = append(windows, b.Window())
		}
	}
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].StartDate.Before(windows[j].StartDate)
	})
	return windows
}

// InsertPending holds the write lock across the overlap check and the insert.
func (r reservations) InsertPending(ctx context.Context, b *domain.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if availability.FindConflict(r.s.blockingLocked(b.CarID), b.StartDate, b.EndDate) != nil {
		return repository.ErrSlotConflict
	}
	r.s.bookings[b.ID] = *b
	return nil
}

func (r reservations) UpdateStatus(ctx context.Context, b *domain.Booking, from domain.BookingStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.bookings[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != from {
		return repository.ErrStatusConflict
	}
	cur.Status = b.Status
	cur.PaymentID = b.PaymentID
	cur.CancelReason = b.CancelReason
	cur.UpdatedAt = b.UpdatedAt
	r.s.bookings[b.ID] = cur
	return nil
}

func (r reservations) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (r reservations) ListStalePending(ctx context.Context, createdBefore time.Time) ([]domain.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Booking
	for _, b := range r.s.bookings {
		if b.Status == domain.BookingStatusPending && b.CreatedAt.Before(createdBefore) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
