package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/BearBump/StreetEats/internal/api/httpapi"
	"github.com/BearBump/StreetEats/internal/broker/messages"
	"github.com/BearBump/StreetEats/internal/models"
	"github.com/BearBump/StreetEats/internal/services/orders"
)

type eatsAPIOpts struct {
	httpAddr    string
	swaggerPath string

	paymentTopic  string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runEatsAPI(ctx context.Context, opts eatsAPIOpts, srv *httpapi.Server, ordersSvc *orders.Service, consumer kafkaConsumer) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := srv.Router()

	// Swagger опционален: без swaggerPath сервис просто не отдаёт доку.
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
		}
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/swagger.json", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, req, opts.swaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	go func() {
		_ = paymentConsumeLoop(ctx, opts, ordersSvc, consumer)
	}()

	httpSrv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	err = httpSrv.Serve(lis)
	if err == http.ErrServerClosed && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// paymentConsumeLoop - webhook-стрим платёжного провайдера: обновляет только
// payment_status, машину статусов заказа не трогает. Битое сообщение и платёж
// по несуществующему заказу ретраем не лечатся - такие коммитим и пропускаем,
// иначе одно такое сообщение заблокирует партицию навсегда. После прочих
// сбоев consumer перезапускается с небольшой паузой.
func paymentConsumeLoop(ctx context.Context, opts eatsAPIOpts, ordersSvc *orders.Service, consumer kafkaConsumer) error {
	slog.Info("payment consumer started", "topic", opts.paymentTopic, "group", opts.consumerGroup)
	for {
		err := consumer.Consume(ctx, func(_key, value []byte) error {
			var m messages.PaymentUpdated
			if err := json.Unmarshal(value, &m); err != nil {
				slog.Error("malformed payment.updated message", "error", err)
				return nil
			}
			if err := ordersSvc.ApplyPaymentUpdate(ctx, m); err != nil {
				if errors.Is(err, models.ErrOrderNotFound) {
					slog.Error("payment.updated for unknown order, skipping", "order_id", m.OrderID)
					return nil
				}
				return err
			}
			return nil
		})
		if ctx.Err() != nil {
			return err
		}
		slog.Error("payment consume failed, restarting", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
