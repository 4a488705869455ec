// Package docstore keeps cars and bookings in Firestore, the main app's
// document database.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental-backend/internal/availability"
	"carrental-backend/internal/config"
	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	carsCollection     = "cars"
	bookingsCollection = "bookings"
)

var blockingStatuses = []string{string(domain.BookingStatusPending), string(domain.BookingStatusConfirmed)}

type Store struct {
	client *firestore.Client
}

// Open initialises a Firebase app for the configured project and returns a
// Firestore-backed store. Without a credentials file the SDK falls back to
// application default credentials.
func Open(ctx context.Context, cfg config.FirestoreConfig) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return NewStore(client), nil
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) RateTableRepository() repository.RateTableRepository {
	return &rateTableRepository{client: s.client}
}

func (s *Store) ReservationRepository() repository.ReservationRepository {
	return &reservationRepository{client: s.client}
}

// Ping performs a cheap read; a missing document still proves connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(carsCollection).Doc("_ping").Get(ctx)
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

type rateTableRepository struct {
	client *firestore.Client
}

func (r *rateTableRepository) Get(ctx context.Context, carID string) (*domain.RateTable, error) {
	logger.EnterMethod("docstore.rateTableRepository.Get", "carID", carID)

	logger.ExternalServiceCall("firestore", "GetCar", "carID", carID)
	snap, err := r.client.Collection(carsCollection).Doc(carID).Get(ctx)
	if isNotFound(err) {
		logger.ExitMethod("docstore.rateTableRepository.Get", "carID", carID, "found", false)
		return nil, repository.ErrNotFound
	}
	logger.ExternalServiceResult("firestore", "GetCar", err, "carID", carID)
	if err != nil {
		return nil, err
	}

	rt, err := rateTableFromCarData(carID, snap.Data())
	if err != nil {
		logger.ExitMethodWithError("docstore.rateTableRepository.Get", err, "carID", carID)
		return nil, err
	}

	logger.ExitMethod("docstore.rateTableRepository.Get", "carID", carID, "entries", len(rt.Entries))
	return rt, nil
}

type reservationRepository struct {
	client *firestore.Client
}

func (r *reservationRepository) bookings() *firestore.CollectionRef {
	return r.client.Collection(bookingsCollection)
}

func (r *reservationRepository) blockingQuery(carID string) firestore.Query {
	return r.bookings().
		Where("car_id", "==", carID).
		Where("status", "in", blockingStatuses)
}

func windowsFromDocs(docs []*firestore.DocumentSnapshot) ([]domain.ReservationWindow, error) {
	windows := make([]domain.ReservationWindow, 0, len(docs))
	for _, snap := range docs {
		var d bookingDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode booking %s: %w", snap.Ref.ID, err)
		}
		b := d.toDomain(snap.Ref.ID)
		windows = append(windows, b.Window())
	}
	return windows, nil
}

func (r *reservationRepository) ListBlocking(ctx context.Context, carID string) ([]domain.ReservationWindow, error) {
	logger.EnterMethod("docstore.reservationRepository.ListBlocking", "carID", carID)

	docs, err := r.blockingQuery(carID).Documents(ctx).GetAll()
	if err != nil {
		logger.ExitMethodWithError("docstore.reservationRepository.ListBlocking", err, "carID", carID)
		return nil, err
	}
	windows, err := windowsFromDocs(docs)
	if err != nil {
		logger.ExitMethodWithError("docstore.reservationRepository.ListBlocking", err, "carID", carID)
		return nil, err
	}

	logger.ExitMethod("docstore.reservationRepository.ListBlocking", "carID", carID, "count", len(windows))
	return windows, nil
}

// InsertPending reads the car's blocking bookings and creates the new one in
// a single Firestore transaction. A concurrent writer touching the same
// documents makes the SDK retry the function, which then sees the newcomer.
func (r *reservationRepository) InsertPending(ctx context.Context, b *domain.Booking) error {
	logger.EnterMethod("docstore.reservationRepository.InsertPending", "bookingID", b.ID, "carID", b.CarID)

	ref := r.bookings().Doc(b.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(r.blockingQuery(b.CarID)).GetAll()
		if err != nil {
			return err
		}
		windows, err := windowsFromDocs(docs)
		if err != nil {
			return err
		}
		if availability.FindConflict(windows, b.StartDate, b.EndDate) != nil {
			return repository.ErrSlotConflict
		}
		return tx.Create(ref, toBookingDoc(b))
	})
	if err != nil {
		logger.ExitMethodWithError("docstore.reservationRepository.InsertPending", err, "bookingID", b.ID)
		return err
	}

	logger.ExitMethod("docstore.reservationRepository.InsertPending", "bookingID", b.ID)
	return nil
}

func (r *reservationRepository) UpdateStatus(ctx context.Context, b *domain.Booking, from domain.BookingStatus) error {
	logger.EnterMethod("docstore.reservationRepository.UpdateStatus", "bookingID", b.ID, "from", from, "to", b.Status)

	ref := r.bookings().Doc(b.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := snap.DataAt("status")
		if err != nil {
			return err
		}
		if current != string(from) {
			return repository.ErrStatusConflict
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(b.Status)},
			{Path: "payment_id", Value: b.PaymentID},
			{Path: "cancel_reason", Value: b.CancelReason},
			{Path: "updated_at", Value: b.UpdatedAt.UTC()},
		})
	})
	if err != nil {
		if !errors.Is(err, repository.ErrStatusConflict) {
			logger.ExitMethodWithError("docstore.reservationRepository.UpdateStatus", err, "bookingID", b.ID)
		}
		return err
	}

	logger.ExitMethod("docstore.reservationRepository.UpdateStatus", "bookingID", b.ID)
	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	logger.EnterMethod("docstore.reservationRepository.GetByID", "bookingID", id)

	snap, err := r.bookings().Doc(id).Get(ctx)
	if isNotFound(err) {
		logger.ExitMethod("docstore.reservationRepository.GetByID", "bookingID", id, "found", false)
		return nil, repository.ErrNotFound
	}
	if err != nil {
		logger.ExitMethodWithError("docstore.reservationRepository.GetByID", err, "bookingID", id)
		return nil, err
	}
	var d bookingDoc
	if err := snap.DataTo(&d); err != nil {
		logger.ExitMethodWithError("docstore.reservationRepository.GetByID", err, "bookingID", id)
		return nil, err
	}
	b := d.toDomain(id)

	logger.ExitMethod("docstore.reservationRepository.GetByID", "bookingID", id)
	return &b, nil
}

func (r *reservationRepository) ListStalePending(ctx context.Context, createdBefore time.Time) ([]domain.Booking, error) {
	logger.EnterMethod("docstore.reservationRepository.ListStalePending", "createdBefore", createdBefore)

	docs, err := r.bookings().
		Where("status", "==", string(domain.BookingStatusPending)).
		Where("created_at", "<", createdBefore.UTC()).
		OrderBy("created_at", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		logger.ExitMethodWithError("docstore.reservationRepository.ListStalePending", err)
		return nil, err
	}

	out := make([]domain.Booking, 0, len(docs))
	for _, snap := range docs {
		var d bookingDoc
		if err := snap.DataTo(&d); err != nil {
			logger.ExitMethodWithError("docstore.reservationRepository.ListStalePending", err)
			return nil, err
		}
		out = append(out, d.toDomain(snap.Ref.ID))
	}

	logger.ExitMethod("docstore.reservationRepository.ListStalePending", "count", len(out))
	return out, nil
}
