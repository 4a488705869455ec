package service

import (
	"context"
	"errors"
	"time"

	"carrental-backend/internal/availability"
	"carrental-backend/internal/domain"
	"carrental-backend/internal/events"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/payment"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"

	"github.com/google/uuid"
)

const expiredReason = "expired"

type BookingOptions struct {
	// PaymentTimeout bounds each payment status lookup.
	PaymentTimeout time.Duration
	// CancellationGrace is how long before the start a confirmed booking can
	// still be cancelled.
	CancellationGrace time.Duration
	Now               func() time.Time
	NewID             func() string
}

type bookingService struct {
	rates        repository.RateTableRepository
	reservations repository.ReservationRepository
	payments     payment.Gateway
	publisher    events.Publisher
	opts         BookingOptions
}

func NewBookingService(
	rates repository.RateTableRepository,
	reservations repository.ReservationRepository,
	payments payment.Gateway,
	publisher events.Publisher,
	opts BookingOptions,
) BookingService {
	if opts.PaymentTimeout <= 0 {
		opts.PaymentTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &bookingService{
		rates:        rates,
		reservations: reservations,
		payments:     payments,
		publisher:    publisher,
		opts:         opts,
	}
}

func (s *bookingService) InitBooking(ctx context.Context, req InitBookingRequest) (*domain.Booking, error) {
	logger.EnterMethod("bookingService.InitBooking", "carID", req.CarID, "userID", req.UserID, "start", req.StartDate, "end", req.EndDate)

	b, err := s.initBooking(ctx, req)
	if err != nil {
		s.logFailure("bookingService.InitBooking", err, "carID", req.CarID, "userID", req.UserID)
		return nil, err
	}

	s.publish(ctx, events.BookingCreated, b)
	logger.ExitMethod("bookingService.InitBooking", "bookingID", b.ID, "total", b.TotalPriceCents, "rateApplied", b.RateApplied)
	return b, nil
}

func (s *bookingService) initBooking(ctx context.Context, req InitBookingRequest) (*domain.Booking, error) {
	now := s.opts.Now()
	if !req.StartDate.Before(req.EndDate) {
		return nil, &domain.InvalidRangeError{Start: req.StartDate, End: req.EndDate, Reason: "start date must be before end date"}
	}
	if req.StartDate.Before(domain.CalendarDay(now)) {
		return nil, &domain.InvalidRangeError{Start: req.StartDate, End: req.EndDate, Reason: "start date is in the past"}
	}

	rt, err := s.loadRateTable(ctx, req.CarID)
	if err != nil {
		return nil, err
	}

	windows, err := s.reservations.ListBlocking(ctx, req.CarID)
	if err != nil {
		return nil, &domain.CollaboratorError{Op: "list reservations", Err: err}
	}
	if err := availability.Check(req.CarID, windows, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	quote, err := pricing.CalculatePrice(rt, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	b := domain.NewPendingBooking(s.opts.NewID(), req.CarID, req.UserID, req.StartDate, req.EndDate, quote, req.Note, now)
	if err := s.reservations.InsertPending(ctx, &b); err != nil {
		if errors.Is(err, repository.ErrSlotConflict) {
			return nil, s.slotTaken(ctx, req)
		}
		return nil, &domain.CollaboratorError{Op: "insert booking", Err: err}
	}
	return &b, nil
}

// slotTaken reports a conflict the store detected at write time, naming the
// winning window when it can be found.
func (s *bookingService) slotTaken(ctx context.Context, req InitBookingRequest) error {
	sue := &domain.SlotUnavailableError{CarID: req.CarID, Start: req.StartDate, End: req.EndDate}
	if windows, err := s.reservations.ListBlocking(ctx, req.CarID); err == nil {
		sue.Conflict = availability.FindConflict(windows, req.StartDate, req.EndDate)
	}
	return sue
}

func (s *bookingService) ConfirmBooking(ctx context.Context, caller domain.Caller, bookingID, paymentID string) (*domain.Booking, error) {
	logger.EnterMethod("bookingService.ConfirmBooking", "bookingID", bookingID, "paymentID", paymentID, "caller", caller.UserID)

	b, err := s.confirmBooking(ctx, caller, bookingID, paymentID)
	if err != nil {
		s.logFailure("bookingService.ConfirmBooking", err, "bookingID", bookingID, "paymentID", paymentID)
		return nil, err
	}

	logger.ExitMethod("bookingService.ConfirmBooking", "bookingID", bookingID, "status", b.Status)
	return b, nil
}

func (s *bookingService) confirmBooking(ctx context.Context, caller domain.Caller, bookingID, paymentID string) (*domain.Booking, error) {
	current, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// Dry run with a matching paid intent so illegal confirmations fail before
	// the payment provider is contacted.
	dryRun := domain.PaymentIntent{
		PaymentID:   paymentID,
		BookingRef:  current.ID,
		AmountCents: current.TotalPriceCents,
		Status:      domain.PaymentStatusPaid,
	}
	if _, err := current.Confirm(caller, dryRun, s.opts.Now()); err != nil {
		return nil, err
	}

	intent, err := s.checkPayment(ctx, bookingID, paymentID)
	if err != nil {
		return nil, err
	}

	next, err := current.Confirm(caller, *intent, s.opts.Now())
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, current, next)
}

// checkPayment asks the gateway for the intent under PaymentTimeout. Any
// failure, a timeout included, leaves the payment unverified.
func (s *bookingService) checkPayment(ctx context.Context, bookingID, paymentID string) (*domain.PaymentIntent, error) {
	if paymentID == "" {
		return nil, &domain.PaymentUnverifiedError{BookingID: bookingID, Err: payment.ErrPaymentNotFound}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
	defer cancel()

	intent, err := s.payments.CheckStatus(ctx, paymentID)
	if err != nil {
		return nil, &domain.PaymentUnverifiedError{BookingID: bookingID, PaymentID: paymentID, Err: err}
	}
	return intent, nil
}

func (s *bookingService) ApproveBooking(ctx context.Context, caller domain.Caller, bookingID string) (*domain.Booking, error) {
	return s.transition(ctx, "bookingService.ApproveBooking", bookingID, func(b domain.Booking, now time.Time) (domain.Booking, error) {
		return b.Approve(caller, now)
	})
}

func (s *bookingService) RejectBooking(ctx context.Context, caller domain.Caller, bookingID, reason string) (*domain.Booking, error) {
	return s.transition(ctx, "bookingService.RejectBooking", bookingID, func(b domain.Booking, now time.Time) (domain.Booking, error) {
		return b.Reject(caller, reason, now)
	})
}

func (s *bookingService) CompleteBooking(ctx context.Context, caller domain.Caller, bookingID string) (*domain.Booking, error) {
	return s.transition(ctx, "bookingService.CompleteBooking", bookingID, func(b domain.Booking, now time.Time) (domain.Booking, error) {
		return b.Complete(caller, now)
	})
}

func (s *bookingService) CancelBooking(ctx context.Context, caller domain.Caller, bookingID, reason string) (*domain.Booking, error) {
	return s.transition(ctx, "bookingService.CancelBooking", bookingID, func(b domain.Booking, now time.Time) (domain.Booking, error) {
		return b.Cancel(caller, reason, s.opts.CancellationGrace, now)
	})
}

func (s *bookingService) transition(
	ctx context.Context,
	method, bookingID string,
	apply func(b domain.Booking, now time.Time) (domain.Booking, error),
) (*domain.Booking, error) {
	logger.EnterMethod(method, "bookingID", bookingID)

	current, err := s.loadBooking(ctx, bookingID)
	if err == nil {
		var next domain.Booking
		next, err = apply(*current, s.opts.Now())
		if err == nil {
			var saved *domain.Booking
			saved, err = s.persist(ctx, current, next)
			if err == nil {
				logger.ExitMethod(method, "bookingID", bookingID, "status", saved.Status)
				return saved, nil
			}
		}
	}

	s.logFailure(method, err, "bookingID", bookingID)
	return nil, err
}

// persist writes next only if the stored status is still current's, then
// announces the change.
func (s *bookingService) persist(ctx context.Context, current *domain.Booking, next domain.Booking) (*domain.Booking, error) {
	if err := s.reservations.UpdateStatus(ctx, &next, current.Status); err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, &domain.InvalidTransitionError{
				BookingID: current.ID,
				From:      current.Status,
				To:        next.Status,
				Reason:    "booking was modified concurrently",
				Err:       err,
			}
		case errors.Is(err, repository.ErrNotFound):
			return nil, &domain.NotFoundError{Resource: "booking", ID: current.ID}
		default:
			return nil, &domain.CollaboratorError{Op: "update booking status", Err: err}
		}
	}

	s.publish(ctx, events.TypeFor(next.Status), &next)
	return &next, nil
}

func (s *bookingService) GetBooking(ctx context.Context, caller domain.Caller, bookingID string) (*domain.Booking, error) {
	logger.EnterMethod("bookingService.GetBooking", "bookingID", bookingID, "caller", caller.UserID)

	b, err := s.loadBooking(ctx, bookingID)
	if err == nil && !caller.IsOwner() && caller.UserID != b.UserID {
		// Other customers' bookings are reported as missing.
		err = &domain.NotFoundError{Resource: "booking", ID: bookingID}
	}
	if err != nil {
		s.logFailure("bookingService.GetBooking", err, "bookingID", bookingID)
		return nil, err
	}

	logger.ExitMethod("bookingService.GetBooking", "bookingID", bookingID)
	return b, nil
}

func (s *bookingService) QuotePrice(ctx context.Context, carID string, start, end time.Time) (*domain.Quote, error) {
	logger.EnterMethod("bookingService.QuotePrice", "carID", carID, "start", start, "end", end)

	quote, err := s.quote(ctx, carID, start, end)
	if err != nil {
		s.logFailure("bookingService.QuotePrice", err, "carID", carID)
		return nil, err
	}

	logger.ExitMethod("bookingService.QuotePrice", "carID", carID, "total", quote.TotalPriceCents, "rateApplied", quote.RateApplied)
	return quote, nil
}

func (s *bookingService) quote(ctx context.Context, carID string, start, end time.Time) (*domain.Quote, error) {
	if !start.Before(end) {
		return nil, &domain.InvalidRangeError{Start: start, End: end, Reason: "start date must be before end date"}
	}
	rt, err := s.loadRateTable(ctx, carID)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.CalculatePrice(rt, start, end)
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *bookingService) ExpireStalePending(ctx context.Context, createdBefore time.Time) (int, error) {
	logger.EnterMethod("bookingService.ExpireStalePending", "createdBefore", createdBefore)

	stale, err := s.reservations.ListStalePending(ctx, createdBefore)
	if err != nil {
		err = &domain.CollaboratorError{Op: "list stale bookings", Err: err}
		logger.ExitMethodWithError("bookingService.ExpireStalePending", err)
		return 0, err
	}

	system := domain.SystemCaller()
	var (
		expired int
		errs    []error
	)
	for i := range stale {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		current := stale[i]
		next, err := current.Cancel(system, expiredReason, s.opts.CancellationGrace, s.opts.Now())
		if err == nil {
			_, err = s.persist(ctx, &current, next)
		}
		var ite *domain.InvalidTransitionError
		switch {
		case err == nil:
			expired++
		case errors.As(err, &ite) && errors.Is(err, repository.ErrStatusConflict):
			// Confirmed or cancelled since it was listed.
			logger.Info("Skipping booking that changed while expiring", "bookingID", current.ID)
		default:
			logger.Error("Failed to expire pending booking", "bookingID", current.ID, "error", err)
			errs = append(errs, err)
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		logger.ExitMethodWithError("bookingService.ExpireStalePending", err, "expired", expired)
		return expired, err
	}
	logger.ExitMethod("bookingService.ExpireStalePending", "expired", expired, "candidates", len(stale))
	return expired, nil
}

func (s *bookingService) loadBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := s.reservations.GetByID(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &domain.NotFoundError{Resource: "booking", ID: bookingID}
	}
	if err != nil {
		return nil, &domain.CollaboratorError{Op: "load booking", Err: err}
	}
	return b, nil
}

// loadRateTable fetches and validates a car's rates. A table that breaks the
// integrity rules is a RateConfigError, never a price.
func (s *bookingService) loadRateTable(ctx context.Context, carID string) (*domain.RateTable, error) {
	rt, err := s.rates.Get(ctx, carID)
	if err != nil {
		var rce *domain.RateConfigError
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, &domain.NotFoundError{Resource: "car", ID: carID}
		case errors.As(err, &rce):
			return nil, err
		default:
			return nil, &domain.CollaboratorError{Op: "load rate table", Err: err}
		}
	}
	if err := rt.Validate(); err != nil {
		return nil, err
	}
	return rt, nil
}

// publish is best-effort: a failed notification never undoes a transition.
func (s *bookingService) publish(ctx context.Context, t events.Type, b *domain.Booking) {
	if err := s.publisher.Publish(ctx, events.NewEvent(t, b, s.opts.Now())); err != nil {
		logger.Warn("Failed to publish booking event", "type", t, "bookingID", b.ID, "error", err)
	}
}

// logFailure logs at a level matching the error kind: broken rate data and
// illegal transitions are bugs, the rest are expected outcomes.
func (s *bookingService) logFailure(method string, err error, args ...any) {
	var (
		rce *domain.RateConfigError
		ite *domain.InvalidTransitionError
		ce  *domain.CollaboratorError
	)
	switch {
	case errors.As(err, &rce), errors.As(err, &ite), errors.As(err, &ce):
		logger.ExitMethodWithError(method, err, args...)
	default:
		allArgs := append([]any{"method", method, "error", err}, args...)
		logger.Info("Booking request declined", allArgs...)
	}
}
