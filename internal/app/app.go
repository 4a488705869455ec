package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"carrental-backend/internal/cache"
	"carrental-backend/internal/config"
	"carrental-backend/internal/domain"
	"carrental-backend/internal/events"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/payment"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/repository/docstore"
	"carrental-backend/internal/repository/memory"
	"carrental-backend/internal/repository/postgres"
	"carrental-backend/internal/service"
)

// App holds the booking core and the collaborators it was built from.
type App struct {
	Config  *config.Config
	Store   repository.Store
	Booking service.BookingService

	closers []func() error
}

// New connects the configured store, optional rate cache and event sinks and
// builds the booking service on top of them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	rates := store.RateTableRepository()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, rate tables will not be cached until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		rates = cache.NewRateTableCache(rates, client, cfg.RateTableTTL())
		a.closers = append(a.closers, client.Close)
		logger.Info("Rate table cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.RateTableTTL())
	}

	publisher, err := a.publishers(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	gateway := payment.NewHTTPGateway(cfg.Payment.BaseURL, cfg.Payment.APIKey, cfg.PaymentTimeout())

	a.Booking = service.NewBookingService(rates, store.ReservationRepository(), gateway, publisher, service.BookingOptions{
		PaymentTimeout:    cfg.PaymentTimeout(),
		CancellationGrace: cfg.CancellationGrace(),
	})
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Storage.Type {
	case config.StorageTypePostgres:
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
		store, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		logger.Info("Database connection established")
		return store, nil
	case config.StorageTypeFirestore:
		logger.Info("Connecting to Firestore...", "project", cfg.Firestore.ProjectID)
		return docstore.Open(ctx, cfg.Firestore)
	case config.StorageTypeMemory:
		logger.Warn("Using in-memory store; bookings are lost on restart")
		store := memory.NewStore()
		for _, seed := range cfg.Storage.SeedCars {
			rt, err := seedRateTable(seed)
			if err != nil {
				return nil, err
			}
			store.PutRateTable(rt)
		}
		logger.Info("Seeded memory store", "cars", len(cfg.Storage.SeedCars))
		return store, nil
	default:
		return nil, fmt.Errorf("storage type %q not supported", cfg.Storage.Type)
	}
}

// seedRateTable turns a configured demo car into a validated rate table.
func seedRateTable(seed config.SeedCarConfig) (domain.RateTable, error) {
	rt := domain.RateTable{
		CarID:              seed.CarID,
		Currency:           seed.Currency,
		Entries:            []domain.RateEntry{{DailyPriceCents: seed.DailyPriceCents}},
		WeeklyDiscountPct:  seed.WeeklyDiscountPct,
		MonthlyDiscountPct: seed.MonthlyDiscountPct,
	}
	for _, season := range seed.Seasons {
		start, err := pricing.ParseDate(season.StartDate)
		if err != nil {
			return domain.RateTable{}, fmt.Errorf("seed car %s: %w", seed.CarID, err)
		}
		end, err := pricing.ParseDate(season.EndDate)
		if err != nil {
			return domain.RateTable{}, fmt.Errorf("seed car %s: %w", seed.CarID, err)
		}
		rt.Entries = append(rt.Entries, domain.RateEntry{StartDate: &start, EndDate: &end, DailyPriceCents: season.DailyPriceCents})
	}
	if err := rt.Validate(); err != nil {
		return domain.RateTable{}, fmt.Errorf("seed car %s: %w", seed.CarID, err)
	}
	return rt, nil
}

func (a *App) publishers(cfg *config.Config) (events.Publisher, error) {
	fanout := events.Fanout{events.LogPublisher{}}

	if cfg.Events.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		fanout = append(fanout, pub)
		logger.Info("Publishing booking events to RabbitMQ", "exchange", cfg.Events.Exchange)
	}

	if cfg.SendGrid.APIKey != "" {
		fanout = append(fanout, events.NewEmailNotifier(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName, cfg.SendGrid.OwnerEmail))
		logger.Info("Owner email notifications enabled", "to", cfg.SendGrid.OwnerEmail)
	}
	return fanout, nil
}

// Close releases collaborators in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
