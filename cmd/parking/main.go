package main

import (
	"context"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"smartparking/internal/bookings/cache"
	bookinghandler "smartparking/internal/bookings/handler"
	bookingrepo "smartparking/internal/bookings/repository"
	bookingservice "smartparking/internal/bookings/service"
	bookingvalidator "smartparking/internal/bookings/validator"
	migrations "smartparking/internal/migrations/mongo"
	"smartparking/internal/receipts"
	"smartparking/internal/sweeper"
	userhandler "smartparking/internal/users/handler"
	userrepo "smartparking/internal/users/repository"
	userservice "smartparking/internal/users/service"
	uservalidator "smartparking/internal/users/validator"
	"smartparking/pkg/app"
	"smartparking/pkg/config"
	"smartparking/pkg/kafka"
	kafka_config "smartparking/pkg/kafka/config"
	kafkamiddleware "smartparking/pkg/kafka/middleware"
	"smartparking/pkg/session"
)

const ServiceName = "smartparking"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Smart Parking service")
	verifySchema(cfg)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	serverApp := app.NewApplication(cfg, registry)

	events, closeEvents := initEvents(cfg, registry)
	serverApp.OnClose("events", closeEvents)

	sessions := session.NewManager(cfg.JWTSecret, cfg.SessionTTL)
	boardCache := cache.NewRedisBoardCache(cfg.Client.Redis, cfg.BoardCacheTTL, cfg.Log)

	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	bookingService := bookingservice.NewBookingService(
		bookingRepo,
		boardCache,
		bookingvalidator.NewBookingValidator(cfg.Log, cfg.SlotCount),
		events,
		bookingservice.NewMetrics(registry),
		cfg,
	)
	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName, "slots", cfg.SlotCount)

	userService := userservice.NewUserService(
		userrepo.NewMongoUserRepository(cfg),
		bookingRepo,
		boardCache,
		uservalidator.NewUserValidator(cfg.Log),
		sessions,
		events,
		cfg,
	)
	cfg.Log.Info("User service initialized")

	sweep := sweeper.New(bookingService, sweeper.NewRedisLocker(cfg.Client.Redis), sweeper.Config{
		Interval: cfg.SweepInterval,
		LockTTL:  cfg.SweepLockTTL,
	}, cfg.Log)
	sweep.Start(context.Background())
	serverApp.OnShutdown("sweeper", sweep.Stop)

	health := app.NewHealthHandler(cfg.Log,
		app.Dependency{
			Name:     "mongo",
			Required: true,
			Ping:     func(ctx context.Context) error { return cfg.Client.Mongo.Ping(ctx, nil) },
		},
		app.Dependency{
			Name: "redis",
			Ping: func(ctx context.Context) error { return cfg.Client.Redis.Ping(ctx).Err() },
		},
	)

	serverApp.SetApp(health, sessions,
		bookinghandler.NewBookingHandler(bookingService, receipts.NewPDFRenderer("Smart Parking Receipt"), cfg.Log),
		userhandler.NewUserHandler(userService, cfg.Log),
	)
	serverApp.Run()
}

// verifySchema stops startup when the database has not been migrated.
func verifySchema(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := migrations.VerifyIndexes(ctx, cfg.Client.Mongo.Database(cfg.MongoDatabaseName)); err != nil {
		cfg.Log.Fatal("Database schema check failed", "error", err)
	}
}

// initEvents returns the domain event publisher and its closer. With Kafka
// disabled, or if the producer cannot be built, events are dropped.
func initEvents(cfg *config.Config, registry prometheus.Registerer) (kafka.Publisher, func() error) {
	noop := func() error { return nil }
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, domain events will not be published")
		return kafka.NoopPublisher{}, noop
	}

	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Error("Invalid Kafka configuration, domain events disabled", "error", err)
		return kafka.NoopPublisher{}, noop
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log)
	if err != nil {
		cfg.Log.Error("Failed to create Kafka producer, domain events disabled", "error", err)
		return kafka.NoopPublisher{}, noop
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafkamiddleware.NewMetrics(registry).ProducerMiddleware())
	}

	publisher := kafka.NewEventPublisher(producer, ServiceName, kafkaCfg.PublishTimeout, cfg.Log)
	return publisher, publisher.Close
}
