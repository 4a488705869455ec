package service

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/events"

	"github.com/stretchr/testify/mock"
)

type mockRateTableRepo struct {
	mock.Mock
}

func (m *mockRateTableRepo) Get(ctx context.Context, carID string) (*domain.RateTable, error) {
	args := m.Called(ctx, carID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateTable), args.Error(1)
}

type mockReservationRepo struct {
	mock.Mock
}

func (m *mockReservationRepo) ListBlocking(ctx context.Context, carID string) ([]domain.ReservationWindow, error) {
	args := m.Called(ctx, carID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReservationWindow), args.Error(1)
}

func (m *mockReservationRepo) InsertPending(ctx context.Context, booking *domain.Booking) error {
	return m.Called(ctx, booking).Error(0)
}

func (m *mockReservationRepo) UpdateStatus(ctx context.Context, booking *domain.Booking, from domain.BookingStatus) error {
	return m.Called(ctx, booking, from).Error(0)
}

func (m *mockReservationRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockReservationRepo) ListStalePending(ctx context.Context, createdBefore time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, createdBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CheckStatus(ctx context.Context, paymentID string) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentIntent), args.Error(1)
}

// slowGateway never answers before the caller's deadline.
type slowGateway struct{}

func (slowGateway) CheckStatus(ctx context.Context, paymentID string) (*domain.PaymentIntent, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, e events.Event) error {
	return m.Called(ctx, e).Error(0)
}

func eventOfType(t events.Type) interface{} {
	return mock.MatchedBy(func(e events.Event) bool { return e.Type == t })
}
