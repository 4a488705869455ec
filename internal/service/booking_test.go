package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/events"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

var (
	customer = domain.Caller{UserID: "user-1", Role: domain.RoleCustomer}
	stranger = domain.Caller{UserID: "user-2", Role: domain.RoleCustomer}
	owner    = domain.Caller{UserID: "owner-1", Role: domain.RoleOwner}
)

func rateTable() *domain.RateTable {
	weekly := 0.15
	return &domain.RateTable{
		CarID:             "car-1",
		Currency:          "USD",
		Entries:           []domain.RateEntry{{DailyPriceCents: 10000}},
		WeeklyDiscountPct: &weekly,
	}
}

func pendingBooking() *domain.Booking {
	return &domain.Booking{
		ID:              "b-1",
		CarID:           "car-1",
		UserID:          "user-1",
		StartDate:       day(10),
		EndDate:         day(15),
		TotalPriceCents: 50000,
		Currency:        "USD",
		RateApplied:     domain.RateTierDaily,
		Status:          domain.BookingStatusPending,
		CreatedAt:       now.Add(-time.Hour),
		UpdatedAt:       now.Add(-time.Hour),
	}
}

type fixture struct {
	rates *mockRateTableRepo
	res   *mockReservationRepo
	gw    *mockGateway
	pub   *mockPublisher
	svc   BookingService
}

func newFixture() *fixture {
	f := &fixture{
		rates: new(mockRateTableRepo),
		res:   new(mockReservationRepo),
		gw:    new(mockGateway),
		pub:   new(mockPublisher),
	}
	f.svc = NewBookingService(f.rates, f.res, f.gw, f.pub, BookingOptions{
		PaymentTimeout:    time.Second,
		CancellationGrace: 24 * time.Hour,
		Now:               func() time.Time { return now },
		NewID:             func() string { return "b-new" },
	})
	return f
}

func TestBookingService_InitBooking(t *testing.T) {
	ctx := context.Background()
	held := []domain.ReservationWindow{{
		BookingID: "b-held", CarID: "car-1", StartDate: day(10), EndDate: day(15), Status: domain.BookingStatusConfirmed,
	}}

	t.Run("Success on boundary touch", func(t *testing.T) {
		f := newFixture()
		f.rates.On("Get", mock.Anything, "car-1").Return(rateTable(), nil)
		f.res.On("ListBlocking", mock.Anything, "car-1").Return(held, nil)
		f.res.On("InsertPending", mock.Anything, mock.MatchedBy(func(b *domain.Booking) bool {
			return b.ID == "b-new" && b.Status == domain.BookingStatusPending && b.TotalPriceCents == 50000
		})).Return(nil)
		f.pub.On("Publish", mock.Anything, eventOfType(events.BookingCreated)).Return(nil)

		b, err := f.svc.InitBooking(ctx, InitBookingRequest{CarID: "car-1", UserID: "user-1", StartDate: day(15), EndDate: day(20), Note: "airport"})
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusPending, b.Status)
		assert.Equal(t, domain.RateTierDaily, b.RateApplied)
		assert.Equal(t, "USD", b.Currency)
		assert.Equal(t, "airport", b.Note)
		assert.Equal(t, now, b.CreatedAt)
		f.res.AssertExpectations(t)
		f.pub.AssertExpectations(t)
	})

	t.Run("Weekly price is frozen on the booking", func(t *testing.T) {
		f := newFixture()
		f.rates.On("Get", mock.Anything, "car-1").Return(rateTable(), nil)
		f.res.On("ListBlocking", mock.Anything, "car-1").Return(nil, nil)
		f.res.On("InsertPending", mock.Anything, mock.Anything).Return(nil)
		f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

		b, err := f.svc.InitBooking(ctx, InitBookingRequest{CarID: "car-1", UserID: "user-1", StartDate: day(2), EndDate: day(9)})
		require.NoError(t, err)
		assert.Equal(t, domain.RateTierWeekly, b.RateApplied)
		assert.Equal(t, int64(59500), b.TotalPriceCents)
	})

	t.Run("Overlap names the conflicting window", func(t *testing.T) {
		f := newFixture()
		f.rates.On("Get", mock.Anything, "car-1").Return(rateTable(), nil)
		f.res.On("ListBlocking", mock.Anything, "car-1").Return(held, nil)

		_, err := f.svc.InitBooking(ctx, InitBookingRequest{CarID: "car-1", UserID: "user-1", StartDate: day(12), EndDate: day(20)})
		var sue *domain.SlotUnavailableError
		require.True(t, errors.As(err, &sue))
		require.NotNil(t, sue.Conflict)
		assert.Equal(t, "b-held", sue.Conflict.BookingID)
		f.res.AssertNotCalled(t, "InsertPending", mock.Anything, mock.Anything)
		f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("Store rejects a racing insert", func(t *testing.T) {
		f := newFixture()
		f.rates.On("Get", mock.Anything, "car-1").Return(rateTable(), nil)
		f.res.On("ListBlocking", mock.Anything, "car-1").Return(nil, nil).Once()
		f.res.On("InsertPending", mock.Anything, mock.Anything).Return(repository.ErrSlotConflict)
		f.res.On("ListBlocking", mock.Anything, "car-1").Return(held, nil).Once()

		_, err := f.svc.InitBooking(ctx, InitBookingRequest{CarID: "car-1", UserID: "user-1", StartDate: day(11), EndDate: day(13)})
		var sue *domain.SlotUnavailableError
		require.True(t, errors.As(err, &sue))
		require.NotNil(t, sue.Conflict)
		assert.Equal(t, "b-held", sue.Conflict.BookingID)
	})

	t.Run("Invalid ranges", func(t *testing.T) {
		f := newFixture()
		for _, r := range [][2]time.Time{{day(20), day(20)}, {day(20), day(10)}, {now.AddDate(0, 0, -3), day(5)}} {
			_, err := f.svc.InitBooking(ctx, InitBookingRequest{CarID: "car-1", UserID: "user-1", StartDate: r[0], EndDate: r[1]})
			var ire *domain.InvalidRangeError
			assert.True(t, errors.As(err, &ire), "range %v", r)
		}
		f.rates.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("Unknown car", func(t *testing.T) {
		f := newFixture()
		f.rates.On("Get", mock.Anything, "car-9").Return(nil, repository.ErrNotFound)

		_, err := f.svc.InitBooking(ctx, InitBookingRequest{CarID: "car-9", UserID: "user-1", StartDate: day(2), EndDate: day(3)})
		var nfe *domain.NotFoundError
		require.True(t, errors.As(err, &nfe))
		assert.Equal(t, "car", nfe.Resource)
	})

	t.Run("Missing base rate", func(t *testing.T) {
		f := newFixture()
		f.rates.On("Get", mock.Anything, "car-1").Return(&domain.RateTable{CarID: "car-1"}, nil)

		_, err := f.svc.InitBooking(ctx, InitBookingRequest{CarID: "car-1", UserID: "user-1", StartDate: day(2), EndDate: day(3)})
		var rce *domain.RateConfigError
		assert.True(t, errors.As(err, &rce))
	})

	t.Run("Store failure", func(t *testing.T) {
		f := newFixture()
		f.rates.On("Get", mock.Anything, "car-1").Return(rateTable(), nil)
		f.res.On("ListBlocking", mock.Anything, "car-1").Return(nil, errors.New("connection reset"))

		_, err := f.svc.InitBooking(ctx, InitBookingRequest{CarID: "car-1", UserID: "user-1", StartDate: day(2), EndDate: day(3)})
		var ce *domain.CollaboratorError
		assert.True(t, errors.As(err, &ce))
	})

	t.Run("Publish failure does not fail the booking", func(t *testing.T) {
		f := newFixture()
		f.rates.On("Get", mock.Anything, "car-1").Return(rateTable(), nil)
		f.res.On("ListBlocking", mock.Anything, "car-1").Return(nil, nil)
		f.res.On("InsertPending", mock.Anything, mock.Anything).Return(nil)
		f.pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		b, err := f.svc.InitBooking(ctx, InitBookingRequest{CarID: "car-1", UserID: "user-1", StartDate: day(2), EndDate: day(3)})
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusPending, b.Status)
	})
}

func TestBookingService_ConfirmAndApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("Owner approval bypasses payment", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)
		f.res.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(b *domain.Booking) bool {
			return b.Status == domain.BookingStatusConfirmed && b.PaymentID == nil
		}), domain.BookingStatusPending).Return(nil)
		f.pub.On("Publish", mock.Anything, eventOfType(events.BookingConfirmed)).Return(nil)

		b, err := f.svc.ApproveBooking(ctx, owner, "b-1")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
		f.gw.AssertNotCalled(t, "CheckStatus", mock.Anything, mock.Anything)
		f.pub.AssertExpectations(t)
	})

	t.Run("Customer cannot approve", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)

		_, err := f.svc.ApproveBooking(ctx, customer, "b-1")
		var ite *domain.InvalidTransitionError
		require.True(t, errors.As(err, &ite))
		assert.ErrorIs(t, err, domain.ErrNotOwner)
		f.res.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Pending payment leaves booking pending", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)
		f.gw.On("CheckStatus", mock.Anything, "pay-1").
			Return(&domain.PaymentIntent{PaymentID: "pay-1", BookingRef: "b-1", Status: domain.PaymentStatusPending}, nil)

		_, err := f.svc.ConfirmBooking(ctx, customer, "b-1", "pay-1")
		var pue *domain.PaymentUnverifiedError
		require.True(t, errors.As(err, &pue))
		assert.Equal(t, domain.PaymentStatusPending, pue.Status)
		f.res.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Paid payment confirms", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)
		f.gw.On("CheckStatus", mock.Anything, "pay-1").
			Return(&domain.PaymentIntent{PaymentID: "pay-1", BookingRef: "b-1", AmountCents: 50000, Status: domain.PaymentStatusPaid}, nil)
		f.res.On("UpdateStatus", mock.Anything, mock.Anything, domain.BookingStatusPending).Return(nil)
		f.pub.On("Publish", mock.Anything, eventOfType(events.BookingConfirmed)).Return(nil)

		b, err := f.svc.ConfirmBooking(ctx, customer, "b-1", "pay-1")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
		require.NotNil(t, b.PaymentID)
		assert.Equal(t, "pay-1", *b.PaymentID)
		assert.Equal(t, now, b.UpdatedAt)
	})

	t.Run("Paid intent not bound to the booking", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)
		f.gw.On("CheckStatus", mock.Anything, "pay-1").
			Return(&domain.PaymentIntent{PaymentID: "pay-1", AmountCents: 50000, Status: domain.PaymentStatusPaid}, nil)

		_, err := f.svc.ConfirmBooking(ctx, customer, "b-1", "pay-1")
		var pue *domain.PaymentUnverifiedError
		require.True(t, errors.As(err, &pue))
		assert.ErrorIs(t, err, domain.ErrPaymentMismatch)
		f.res.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Underpaid intent", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)
		f.gw.On("CheckStatus", mock.Anything, "pay-1").
			Return(&domain.PaymentIntent{PaymentID: "pay-1", BookingRef: "b-1", AmountCents: 1, Status: domain.PaymentStatusPaid}, nil)

		_, err := f.svc.ConfirmBooking(ctx, customer, "b-1", "pay-1")
		assert.ErrorIs(t, err, domain.ErrPaymentAmountMismatch)
		f.res.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failed payment", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)
		f.gw.On("CheckStatus", mock.Anything, "pay-1").
			Return(&domain.PaymentIntent{PaymentID: "pay-1", Status: domain.PaymentStatusFailed}, nil)

		_, err := f.svc.ConfirmBooking(ctx, customer, "b-1", "pay-1")
		var pue *domain.PaymentUnverifiedError
		require.True(t, errors.As(err, &pue))
		assert.Equal(t, domain.PaymentStatusFailed, pue.Status)
	})

	t.Run("Gateway timeout is unverified", func(t *testing.T) {
		res := new(mockReservationRepo)
		res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)
		svc := NewBookingService(new(mockRateTableRepo), res, slowGateway{}, new(mockPublisher), BookingOptions{
			PaymentTimeout: 10 * time.Millisecond,
			Now:            func() time.Time { return now },
		})

		_, err := svc.ConfirmBooking(ctx, customer, "b-1", "pay-1")
		var pue *domain.PaymentUnverifiedError
		require.True(t, errors.As(err, &pue))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		res.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Stranger cannot confirm and gateway is not called", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)

		_, err := f.svc.ConfirmBooking(ctx, stranger, "b-1", "pay-1")
		assert.ErrorIs(t, err, domain.ErrNotBookingParty)
		f.gw.AssertNotCalled(t, "CheckStatus", mock.Anything, mock.Anything)
	})

	t.Run("Already confirmed", func(t *testing.T) {
		f := newFixture()
		b := pendingBooking()
		b.Status = domain.BookingStatusConfirmed
		f.res.On("GetByID", mock.Anything, "b-1").Return(b, nil)

		_, err := f.svc.ConfirmBooking(ctx, customer, "b-1", "pay-1")
		var ite *domain.InvalidTransitionError
		require.True(t, errors.As(err, &ite))
		assert.Equal(t, domain.BookingStatusConfirmed, ite.From)
		f.gw.AssertNotCalled(t, "CheckStatus", mock.Anything, mock.Anything)
	})

	t.Run("Lost race on status", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)
		f.res.On("UpdateStatus", mock.Anything, mock.Anything, domain.BookingStatusPending).Return(repository.ErrStatusConflict)

		_, err := f.svc.ApproveBooking(ctx, owner, "b-1")
		var ite *domain.InvalidTransitionError
		require.True(t, errors.As(err, &ite))
		assert.ErrorIs(t, err, repository.ErrStatusConflict)
		f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("Unknown booking", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "nope").Return(nil, repository.ErrNotFound)

		_, err := f.svc.ApproveBooking(ctx, owner, "nope")
		var nfe *domain.NotFoundError
		assert.True(t, errors.As(err, &nfe))
	})
}

func TestBookingService_RejectCompleteCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("Complete on pending fails", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)

		_, err := f.svc.CompleteBooking(ctx, owner, "b-1")
		var ite *domain.InvalidTransitionError
		require.True(t, errors.As(err, &ite))
		assert.Equal(t, domain.BookingStatusPending, ite.From)
		assert.Equal(t, domain.BookingStatusCompleted, ite.To)
	})

	t.Run("Complete confirmed", func(t *testing.T) {
		f := newFixture()
		b := pendingBooking()
		b.Status = domain.BookingStatusConfirmed
		f.res.On("GetByID", mock.Anything, "b-1").Return(b, nil)
		f.res.On("UpdateStatus", mock.Anything, mock.Anything, domain.BookingStatusConfirmed).Return(nil)
		f.pub.On("Publish", mock.Anything, eventOfType(events.BookingCompleted)).Return(nil)

		got, err := f.svc.CompleteBooking(ctx, owner, "b-1")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusCompleted, got.Status)
	})

	t.Run("Reject stores reason", func(t *testing.T) {
		f := newFixture()
		f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)
		f.res.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(b *domain.Booking) bool {
			return b.Status == domain.BookingStatusCancelled && b.CancelReason == "car in service"
		}), domain.BookingStatusPending).Return(nil)
		f.pub.On("Publish", mock.Anything, eventOfType(events.BookingCancelled)).Return(nil)

		got, err := f.svc.RejectBooking(ctx, owner, "b-1", "car in service")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusCancelled, got.Status)
	})

	t.Run("Cancel confirmed inside grace", func(t *testing.T) {
		f := newFixture()
		b := pendingBooking()
		b.Status = domain.BookingStatusConfirmed
		b.StartDate = now.Add(12 * time.Hour)
		b.EndDate = now.Add(72 * time.Hour)
		f.res.On("GetByID", mock.Anything, "b-1").Return(b, nil)

		_, err := f.svc.CancelBooking(ctx, customer, "b-1", "plans changed")
		assert.ErrorIs(t, err, domain.ErrCancellationWindowClosed)
	})

	t.Run("Cancel confirmed before grace", func(t *testing.T) {
		f := newFixture()
		b := pendingBooking()
		b.Status = domain.BookingStatusConfirmed
		f.res.On("GetByID", mock.Anything, "b-1").Return(b, nil)
		f.res.On("UpdateStatus", mock.Anything, mock.Anything, domain.BookingStatusConfirmed).Return(nil)
		f.pub.On("Publish", mock.Anything, eventOfType(events.BookingCancelled)).Return(nil)

		got, err := f.svc.CancelBooking(ctx, customer, "b-1", "plans changed")
		require.NoError(t, err)
		assert.Equal(t, "plans changed", got.CancelReason)
	})

	t.Run("Terminal bookings reject every transition", func(t *testing.T) {
		for _, status := range []domain.BookingStatus{domain.BookingStatusCancelled, domain.BookingStatusCompleted} {
			f := newFixture()
			b := pendingBooking()
			b.Status = status
			f.res.On("GetByID", mock.Anything, "b-1").Return(b, nil)

			ops := map[string]func() error{
				"approve":  func() error { _, err := f.svc.ApproveBooking(ctx, owner, "b-1"); return err },
				"reject":   func() error { _, err := f.svc.RejectBooking(ctx, owner, "b-1", ""); return err },
				"complete": func() error { _, err := f.svc.CompleteBooking(ctx, owner, "b-1"); return err },
				"cancel":   func() error { _, err := f.svc.CancelBooking(ctx, owner, "b-1", ""); return err },
				"confirm":  func() error { _, err := f.svc.ConfirmBooking(ctx, owner, "b-1", "pay-1"); return err },
			}
			for name, op := range ops {
				var ite *domain.InvalidTransitionError
				assert.True(t, errors.As(op(), &ite), "%s from %s", name, status)
			}
			f.res.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
		}
	})
}

func TestBookingService_GetBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.res.On("GetByID", mock.Anything, "b-1").Return(pendingBooking(), nil)

	b, err := f.svc.GetBooking(ctx, customer, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "b-1", b.ID)

	_, err = f.svc.GetBooking(ctx, owner, "b-1")
	assert.NoError(t, err)

	_, err = f.svc.GetBooking(ctx, stranger, "b-1")
	var nfe *domain.NotFoundError
	assert.True(t, errors.As(err, &nfe))
}

func TestBookingService_QuotePrice(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture()
		f.rates.On("Get", mock.Anything, "car-1").Return(rateTable(), nil)

		q, err := f.svc.QuotePrice(ctx, "car-1", day(1), day(8))
		require.NoError(t, err)
		assert.Equal(t, 7, q.Days)
		assert.Equal(t, domain.RateTierWeekly, q.RateApplied)
		assert.Equal(t, int64(59500), q.TotalPriceCents)
	})

	t.Run("Overlapping seasons are a rate config error", func(t *testing.T) {
		f := newFixture()
		rt := rateTable()
		a, b, c, d := day(1), day(10), day(5), day(20)
		rt.Entries = append(rt.Entries,
			domain.RateEntry{StartDate: &a, EndDate: &b, DailyPriceCents: 1},
			domain.RateEntry{StartDate: &c, EndDate: &d, DailyPriceCents: 2},
		)
		f.rates.On("Get", mock.Anything, "car-1").Return(rt, nil)

		_, err := f.svc.QuotePrice(ctx, "car-1", day(1), day(2))
		var rce *domain.RateConfigError
		assert.True(t, errors.As(err, &rce))
	})

	t.Run("Store failure", func(t *testing.T) {
		f := newFixture()
		f.rates.On("Get", mock.Anything, "car-1").Return(nil, errors.New("timeout"))

		_, err := f.svc.QuotePrice(ctx, "car-1", day(1), day(2))
		var ce *domain.CollaboratorError
		assert.True(t, errors.As(err, &ce))
	})
}

func TestBookingService_ExpireStalePending(t *testing.T) {
	ctx := context.Background()
	cutoff := now.Add(-30 * time.Minute)

	t.Run("Cancels stale and skips concurrently confirmed", func(t *testing.T) {
		f := newFixture()
		first := *pendingBooking()
		second := *pendingBooking()
		second.ID = "b-2"
		f.res.On("ListStalePending", mock.Anything, cutoff).Return([]domain.Booking{first, second}, nil)
		f.res.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(b *domain.Booking) bool {
			return b.ID == "b-1" && b.Status == domain.BookingStatusCancelled && b.CancelReason == "expired"
		}), domain.BookingStatusPending).Return(nil)
		f.res.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(b *domain.Booking) bool {
			return b.ID == "b-2"
		}), domain.BookingStatusPending).Return(repository.ErrStatusConflict)
		f.pub.On("Publish", mock.Anything, eventOfType(events.BookingCancelled)).Return(nil).Once()

		n, err := f.svc.ExpireStalePending(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		f.pub.AssertExpectations(t)
	})

	t.Run("Store failures are reported", func(t *testing.T) {
		f := newFixture()
		f.res.On("ListStalePending", mock.Anything, cutoff).Return([]domain.Booking{*pendingBooking()}, nil)
		f.res.On("UpdateStatus", mock.Anything, mock.Anything, domain.BookingStatusPending).Return(errors.New("db down"))

		n, err := f.svc.ExpireStalePending(ctx, cutoff)
		assert.Error(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("List failure", func(t *testing.T) {
		f := newFixture()
		f.res.On("ListStalePending", mock.Anything, cutoff).Return(nil, errors.New("db down"))

		_, err := f.svc.ExpireStalePending(ctx, cutoff)
		var ce *domain.CollaboratorError
		assert.True(t, errors.As(err, &ce))
	})
}

// Concurrent requests for overlapping dates on one car: exactly one wins.
func TestBookingService_ConcurrentInitBooking(t *testing.T) {
	store := memory.NewStore()
	store.PutRateTable(*rateTable())

	var seq int
	var seqMu sync.Mutex
	svc := NewBookingService(store.RateTableRepository(), store.ReservationRepository(), new(mockGateway), events.Fanout{}, BookingOptions{
		Now: func() time.Time { return now },
		NewID: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("b-%d", seq)
		},
	})

	const workers = 16
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		admitted    int
		unavailable int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.InitBooking(context.Background(), InitBookingRequest{
				CarID:     "car-1",
				UserID:    fmt.Sprintf("user-%d", i),
				StartDate: day(10 + i%3),
				EndDate:   day(14),
			})
			mu.Lock()
			defer mu.Unlock()
			var sue *domain.SlotUnavailableError
			switch {
			case err == nil:
				admitted++
			case errors.As(err, &sue):
				unavailable++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, workers-1, unavailable)

	windows, err := store.ReservationRepository().ListBlocking(context.Background(), "car-1")
	require.NoError(t, err)
	assert.Len(t, windows, 1)
}

// One unbound, underpaid payment must not confirm any booking.
func TestBookingService_PaymentCannotConfirmOtherBookings(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.PutRateTable(*rateTable())

	gw := new(mockGateway)
	gw.On("CheckStatus", mock.Anything, "pay-1").
		Return(&domain.PaymentIntent{PaymentID: "pay-1", AmountCents: 1, Status: domain.PaymentStatusPaid}, nil)

	ids := []string{"b-a", "b-b"}
	svc := NewBookingService(store.RateTableRepository(), store.ReservationRepository(), gw, events.Fanout{}, BookingOptions{
		Now: func() time.Time { return now },
		NewID: func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		},
	})

	a, err := svc.InitBooking(ctx, InitBookingRequest{CarID: "car-1", UserID: "user-1", StartDate: day(2), EndDate: day(4)})
	require.NoError(t, err)
	b, err := svc.InitBooking(ctx, InitBookingRequest{CarID: "car-1", UserID: "user-1", StartDate: day(10), EndDate: day(17)})
	require.NoError(t, err)

	for _, id := range []string{a.ID, b.ID} {
		_, err := svc.ConfirmBooking(ctx, customer, id, "pay-1")
		var pue *domain.PaymentUnverifiedError
		require.True(t, errors.As(err, &pue), "booking %s", id)

		stored, err := store.ReservationRepository().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusPending, stored.Status)
	}
}
