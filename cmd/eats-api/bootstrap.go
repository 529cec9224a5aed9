package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/StreetEats/config"
	"github.com/BearBump/StreetEats/internal/api/httpapi"
	"github.com/BearBump/StreetEats/internal/broker/kafka"
	"github.com/BearBump/StreetEats/internal/cache/rediscache"
	"github.com/BearBump/StreetEats/internal/realtime"
	cartsvc "github.com/BearBump/StreetEats/internal/services/cart"
	"github.com/BearBump/StreetEats/internal/services/notifier"
	"github.com/BearBump/StreetEats/internal/services/orders"
	"github.com/BearBump/StreetEats/internal/storage/pgorder"
	"github.com/BearBump/StreetEats/internal/storage/rediscart"
)

type eatsAPIApp struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      eatsAPIOpts
	srv       *httpapi.Server
	ordersSvc *orders.Service
	consumer  *kafka.Consumer
	closeDB   func()
}

func mustBootstrapEatsAPI() *eatsAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.StreetEats.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.StreetEats.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "eats-api"
	}
	orderTopic := cfg.Kafka.OrderUpdatedTopicName
	if orderTopic == "" {
		orderTopic = "order.updated"
	}
	paymentTopic := cfg.Kafka.PaymentUpdatedTopicName
	if paymentTopic == "" {
		paymentTopic = "payment.updated"
	}
	snapshotTTL := time.Duration(cfg.StreetEats.OrderSnapshotTTLSeconds) * time.Second
	if snapshotTTL <= 0 {
		snapshotTTL = 10 * time.Minute
	}
	taxRateBps := int64(cfg.StreetEats.TaxRateBps)
	if taxRateBps <= 0 {
		taxRateBps = 800
	}
	streamBuf := cfg.StreetEats.StreamBufferSize
	if streamBuf <= 0 {
		streamBuf = 32
	}

	quotaLoc := time.UTC
	if cfg.StreetEats.QuotaTimezone != "" {
		loc, err := time.LoadLocation(cfg.StreetEats.QuotaTimezone)
		if err != nil {
			panic(fmt.Sprintf("bad quota_timezone %q: %v", cfg.StreetEats.QuotaTimezone, err))
		}
		quotaLoc = loc
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	snapshotCache := rediscache.New(redisAddr)
	cartStore := rediscart.New(redisAddr)
	hub := realtime.New(redisAddr, streamBuf)
	quota := rediscache.NewQuotaThrottle(redisAddr, rediscache.QuotaConfig{
		DailyLimit:    cfg.StreetEats.SurpriseDailyLimit,
		GuestLifetime: cfg.StreetEats.SurpriseGuestLifetime,
		Location:      quotaLoc,
	})

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, paymentTopic, consumerGroup)

	ordersSvc := orders.New(st, snapshotCache, hub, producer, orderTopic, snapshotTTL)
	cartSvc := cartsvc.New(cartStore, ordersSvc, taxRateBps)
	inboxSvc := notifier.NewService(st, st, hub, cfg.StreetEats.NotifierFanoutConcurrency)

	srv := httpapi.NewServer(cartSvc, ordersSvc, inboxSvc, quota, st, hub)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &eatsAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: eatsAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   os.Getenv("swaggerPath"),
			paymentTopic:  paymentTopic,
			consumerGroup: consumerGroup,
		},
		srv:       srv,
		ordersSvc: ordersSvc,
		consumer:  consumer,
		closeDB:   st.Close,
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

func (a *eatsAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *eatsAPIApp) Run() error {
	return runEatsAPI(a.ctx, a.opts, a.srv, a.ordersSvc, a.consumer)
}
