package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"villabook/internal/notifications"
	"villabook/pkg/kafka"
	kafka_config "villabook/pkg/kafka/config"
	"villabook/pkg/logger"
)

const (
	ServiceName   = "notifier"
	ConsumerGroup = "villabook-notifier"
)

func main() {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    "json",
		AddSource: true,
		Service:   ServiceName,
	})

	kcfg := kafka_config.Load()
	if err := kcfg.Validate(); err != nil {
		log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(log.Info)

	notifier := notifications.NewConsoleNotifier(log)
	consumer, err := kafka.NewConsumer(
		kcfg,
		notifications.Topic,
		ConsumerGroup,
		notifications.DLQTopic,
		notifications.Handler(notifier),
	)
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
		sig := <-shutdown
		log.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	log.Info("Starting notifier", "topic", notifications.Topic, "group", ConsumerGroup)
	if err := consumer.Start(ctx); err != nil && err != context.Canceled {
		log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		log.Error("Failed to close consumer", "error", err)
	}
	log.Info("Notifier stopped")
}
