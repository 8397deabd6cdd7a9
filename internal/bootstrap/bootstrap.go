// Package bootstrap assembles the reservation service from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	authhandler "ecovolt/internal/auth/handler"
	authrepo "ecovolt/internal/auth/repository"
	authservice "ecovolt/internal/auth/service"
	authvalidator "ecovolt/internal/auth/validator"
	"ecovolt/internal/inventory/allocator"
	inventoryrepo "ecovolt/internal/inventory/repository"
	"ecovolt/internal/qrcode"
	"ecovolt/internal/reservations/events"
	reservationhandler "ecovolt/internal/reservations/handler"
	reservationrepo "ecovolt/internal/reservations/repository"
	reservationservice "ecovolt/internal/reservations/service"
	"ecovolt/internal/reservations/sweeper"
	reservationvalidator "ecovolt/internal/reservations/validator"
	stationhandler "ecovolt/internal/stations/handler"
	stationrepo "ecovolt/internal/stations/repository"
	"ecovolt/internal/stations/seed"
	stationservice "ecovolt/internal/stations/service"
	stationvalidator "ecovolt/internal/stations/validator"
	"ecovolt/pkg/app"
	"ecovolt/pkg/config"
	"ecovolt/pkg/kafka"
	kafkaconfig "ecovolt/pkg/kafka/config"
	kafkamiddleware "ecovolt/pkg/kafka/middleware"
	"ecovolt/pkg/sealer"
)

type repositories struct {
	stations     stationrepo.StationRepository
	claims       inventoryrepo.ClaimRepository
	reservations reservationrepo.ReservationRepository
	users        authrepo.UserRepository
}

func newRepositories(cfg *config.Config) repositories {
	if cfg.UsesMongo() {
		stations := stationrepo.NewMongoStationRepository(cfg)
		return repositories{
			stations:     stations,
			claims:       inventoryrepo.NewMongoClaimRepository(cfg, stations),
			reservations: reservationrepo.NewMongoReservationRepository(cfg),
			users:        authrepo.NewMongoUserRepository(cfg),
		}
	}

	stations := stationrepo.NewMemoryStationRepository()
	return repositories{
		stations:     stations,
		claims:       inventoryrepo.NewMemoryClaimRepository(stations),
		reservations: reservationrepo.NewMemoryReservationRepository(cfg.OneReservationPerUser),
		users:        authrepo.NewMemoryUserRepository(),
	}
}

// Build wires repositories, services, handlers and background workers into
// an application ready to Run. cfg.Client.Mongo must already be connected
// when the mongo backend is selected.
func Build(cfg *config.Config) (*app.Application, error) {
	ctx := context.Background()
	repos := newRepositories(cfg)
	application := app.NewApplication(cfg)

	stationSvc := stationservice.NewStationService(repos.stations, stationvalidator.NewStationValidator(), cfg)
	if err := seedStations(ctx, cfg, stationSvc); err != nil {
		return nil, err
	}

	key, err := cfg.QRKey()
	if err != nil {
		return nil, err
	}
	codeSealer, err := sealer.New(key)
	if err != nil {
		return nil, fmt.Errorf("init code sealer: %w", err)
	}
	issuer := qrcode.NewIssuer(codeSealer, repos.reservations)

	var kafkaCfg *kafkaconfig.Config
	var publisher reservationservice.EventPublisher = events.NoopPublisher{}
	if cfg.KafkaEnabled {
		kafkaCfg, err = kafkaconfig.Load()
		if err != nil {
			return nil, fmt.Errorf("load kafka config: %w", err)
		}
		kafkaCfg.LogConfiguration(cfg.Log.Info)

		producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaReservationsTopic, "", cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("init reservations producer: %w", err)
		}
		producer.Use(kafkamiddleware.MetricsProducer())
		producer.Use(kafkamiddleware.LoggingProducer(cfg.Log))
		application.AddCloser("reservations producer", producer.Close)
		publisher = events.NewKafkaPublisher(producer)
	}

	reservationSvc := reservationservice.NewReservationService(
		repos.reservations,
		repos.stations,
		allocator.New(repos.claims, cfg.Log),
		issuer,
		publisher,
		cfg,
	)
	authSvc := authservice.NewAuthService(repos.users, cfg)

	application.SetApp(
		stationhandler.NewStationHandler(stationSvc, cfg.Log),
		reservationhandler.NewReservationHandler(reservationSvc, reservationvalidator.NewReservationValidator(), authSvc, cfg.Log),
		authhandler.NewAuthHandler(authSvc, authvalidator.NewAuthValidator(), reservationSvc, cfg.Log),
	)

	sweep := sweeper.New(reservationSvc, cfg.SweepInterval, cfg.Log)
	application.AddWorker("reservation sweeper", func(ctx context.Context) error {
		sweep.Start(ctx)
		return nil
	})

	if cfg.KafkaEnabled && cfg.KafkaReturnsTopic != "" {
		consumer, err := kafka.NewConsumer(
			kafkaCfg,
			cfg.KafkaReturnsTopic,
			cfg.KafkaGroupID,
			cfg.KafkaReturnsDLQTopic,
			events.ReturnsHandler(reservationSvc, cfg.Log),
			cfg.Log,
		)
		if err != nil {
			return nil, fmt.Errorf("init returns consumer: %w", err)
		}
		consumer.Use(kafkamiddleware.MetricsConsumer())
		consumer.Use(kafkamiddleware.LoggingConsumer(cfg.Log))
		application.AddWorker("returns consumer", consumer.Start)
		application.AddCloser("returns consumer", consumer.Close)
	}

	cfg.Log.Info("Reservation service assembled",
		"storage", cfg.StorageBackend,
		"kafka", cfg.KafkaEnabled,
		"one_reservation_per_user", cfg.OneReservationPerUser,
	)
	return application, nil
}

// seedStations fills the in-memory backend from the seed file on every
// start. Mongo deployments are seeded once by cmd/migrate.
func seedStations(ctx context.Context, cfg *config.Config, svc stationservice.StationService) error {
	if cfg.UsesMongo() || cfg.StationsSeedFile == "" {
		return nil
	}
	stations, err := seed.LoadFile(cfg.StationsSeedFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.Log.Warn("Station seed file not found, starting with no stations", "path", cfg.StationsSeedFile)
			return nil
		}
		return err
	}
	if _, err := svc.Provision(ctx, stations); err != nil {
		return fmt.Errorf("provision stations: %w", err)
	}
	return nil
}
