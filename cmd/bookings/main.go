package main

import (
	"villabook/internal/bookings/handler"
	"villabook/internal/bookings/repository"
	"villabook/internal/bookings/service"
	"villabook/internal/bookings/validator"
	"villabook/internal/notifications"
	"villabook/pkg/app"
	"villabook/pkg/config"
	"villabook/pkg/kafka"
	kafka_config "villabook/pkg/kafka/config"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Bookings service")
	bookingService := initServices(cfg)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg,
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		handler.NewBookingHandler(bookingService, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config) service.BookingService {
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewBookingLockRepository(cfg)

	bookingService := service.NewBookingService(
		bookingRepo,
		lockRepo,
		bookingValidator,
		initPublisher(cfg),
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService
}

// initPublisher wires the Kafka producer for booking events. A broker that is
// down at startup must not keep the API from serving, so failures degrade to
// the no-op publisher.
func initPublisher(cfg *config.Config) notifications.Publisher {
	kcfg := kafka_config.Load()
	if err := kcfg.Validate(); err != nil {
		cfg.Log.Warn("Invalid Kafka configuration, booking events disabled", "error", err)
		return notifications.NoopPublisher{}
	}

	producer, err := kafka.NewProducer(kcfg, notifications.Topic, notifications.DLQTopic)
	if err != nil {
		cfg.Log.Warn("Failed to create Kafka producer, booking events disabled", "error", err)
		return notifications.NoopPublisher{}
	}

	return notifications.NewKafkaPublisher(producer, cfg.Log, ServiceName)
}
