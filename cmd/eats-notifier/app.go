package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/StreetEats/internal/broker/messages"
	"github.com/BearBump/StreetEats/internal/services/notifier"
)

type notifierOpts struct {
	httpAddr    string
	swaggerPath string

	topic             string
	consumerGroup     string
	fanoutConcurrency int

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

// runNotifier крутит два контура: consumer order.updated с рестартом после
// сбоя и служебный HTTP (health/stats). Останавливается по контексту или
// падению HTTP-сервера.
func runNotifier(ctx context.Context, opts notifierOpts, svc *notifier.Service, consumer kafkaConsumer) error {
	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- consumeLoop(ctx, opts, svc, consumer)
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runNotifierHTTPServer(ctx, opts, svc)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-consumeErr:
		return err
	case err := <-httpErr:
		return err
	}
}

func consumeLoop(ctx context.Context, opts notifierOpts, svc *notifier.Service, consumer kafkaConsumer) error {
	slog.Info("order.updated consumer started", "topic", opts.topic, "group", opts.consumerGroup)
	for {
		err := consumer.Consume(ctx, func(_key, value []byte) error {
			var m messages.OrderUpdated
			if err := json.Unmarshal(value, &m); err != nil {
				// Битое сообщение коммитим и пропускаем, иначе оно
				// заблокирует партицию навсегда.
				slog.Error("malformed order.updated message", "error", err)
				return nil
			}
			return svc.Dispatch(ctx, notifier.EventFromOrderUpdate(m))
		})
		if ctx.Err() != nil {
			return err
		}
		slog.Error("consume failed, restarting", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
