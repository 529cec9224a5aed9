package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/StreetEats/config"
	"github.com/BearBump/StreetEats/internal/broker/kafka"
	"github.com/BearBump/StreetEats/internal/realtime"
	"github.com/BearBump/StreetEats/internal/services/notifier"
	"github.com/BearBump/StreetEats/internal/storage/pgorder"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	topic := cfg.Kafka.OrderUpdatedTopicName
	if topic == "" {
		topic = "order.updated"
	}
	consumerGroup := cfg.StreetEats.NotifierKafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "eats-notifier"
	}
	httpAddr := cfg.StreetEats.NotifierHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}
	concurrency := cfg.StreetEats.NotifierFanoutConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	streamBuf := cfg.StreetEats.StreamBufferSize
	if streamBuf <= 0 {
		streamBuf = 32
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	hub := realtime.New(redisAddr, streamBuf)

	svc := notifier.NewService(st, st, hub, concurrency)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := notifierOpts{
		httpAddr:          httpAddr,
		swaggerPath:       os.Getenv("swaggerPath"),
		topic:             topic,
		consumerGroup:     consumerGroup,
		fanoutConcurrency: concurrency,
	}
	if err := runNotifier(ctx, opts, svc, consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgorder.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgorder.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}
