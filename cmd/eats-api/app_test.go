package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/StreetEats/internal/api/httpapi"
	"github.com/BearBump/StreetEats/internal/broker/messages"
	"github.com/BearBump/StreetEats/internal/models"
	"github.com/BearBump/StreetEats/internal/services/orders"
)

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

// replayConsumer воспроизводит семантику commit-on-success: ошибка
// обработчика возвращает управление из Consume, несакоммиченное смещение
// при следующем вызове перечитывается заново.
type replayConsumer struct {
	mu       sync.Mutex
	messages [][]byte
	offset   int
}

func (c *replayConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		c.mu.Lock()
		if c.offset >= len(c.messages) {
			c.mu.Unlock()
			<-ctx.Done()
			return ctx.Err()
		}
		msg := c.messages[c.offset]
		c.mu.Unlock()
		if err := handler(nil, msg); err != nil {
			return err
		}
		c.mu.Lock()
		c.offset++
		c.mu.Unlock()
	}
}

type paymentRepo struct {
	mu      sync.Mutex
	applied map[uint64]string
}

func (r *paymentRepo) UpdatePaymentStatus(_ context.Context, orderID uint64, paymentStatus string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if orderID != 2 {
		return nil, errors.Wrapf(models.ErrOrderNotFound, "order %d", orderID)
	}
	if r.applied == nil {
		r.applied = map[uint64]string{}
	}
	r.applied[orderID] = paymentStatus
	return &models.Order{ID: orderID, PaymentStatus: paymentStatus}, nil
}

func (r *paymentRepo) CreateOrder(context.Context, models.OrderCreateInput) (*models.Order, error) {
	return nil, nil
}
func (r *paymentRepo) GetOrderByID(context.Context, uint64) (*models.Order, error) { return nil, nil }
func (r *paymentRepo) ListOrdersByCustomer(context.Context, string, int, int) ([]*models.Order, error) {
	return nil, nil
}
func (r *paymentRepo) ListOrdersByTruck(context.Context, string, int, int) ([]*models.Order, error) {
	return nil, nil
}
func (r *paymentRepo) ListOrdersByStatus(context.Context, string, int, int) ([]*models.Order, error) {
	return nil, nil
}
func (r *paymentRepo) ListOrderTransitions(context.Context, uint64) ([]*models.OrderTransition, error) {
	return nil, nil
}
func (r *paymentRepo) TransitionOrder(context.Context, uint64, string, string, string, string) (*models.Order, error) {
	return nil, nil
}

// Битое сообщение и платёж по несуществующему заказу не должны блокировать
// партицию: оба пропускаются, следующее валидное сообщение применяется.
func TestPaymentConsumeLoop_SkipsUnknownOrder(t *testing.T) {
	repo := &paymentRepo{}
	ordersSvc := orders.New(repo, nil, nil, nil, "", 0)

	unknown, err := json.Marshal(messages.PaymentUpdated{OrderID: 1, PaymentStatus: models.PaymentStatusSucceeded})
	require.NoError(t, err)
	known, err := json.Marshal(messages.PaymentUpdated{OrderID: 2, PaymentStatus: models.PaymentStatusSucceeded})
	require.NoError(t, err)

	consumer := &replayConsumer{messages: [][]byte{[]byte("{"), unknown, known}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := eatsAPIOpts{paymentTopic: "payment.updated", consumerGroup: "g"}
	errCh := make(chan error, 1)
	go func() {
		errCh <- paymentConsumeLoop(ctx, opts, ordersSvc, consumer)
	}()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.applied[2] == models.PaymentStatusSucceeded
	}, 3*time.Second, 10*time.Millisecond)

	consumer.mu.Lock()
	require.Equal(t, 3, consumer.offset)
	consumer.mu.Unlock()

	cancel()
	require.Error(t, <-errCh)
}

func TestRunEatsAPI_HealthServed(t *testing.T) {
	srv := httpapi.NewServer(nil, nil, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := eatsAPIOpts{
		httpAddr:      "127.0.0.1:0",
		paymentTopic:  "payment.updated",
		consumerGroup: "g",
		onListen:      func(addr string) { addrCh <- addr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runEatsAPI(ctx, opts, srv, nil, fakeConsumer{})
	}()

	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), `"ok"`)

	cancel()
	require.Error(t, <-errCh)
}

func TestRunEatsAPI_SwaggerServed(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	srv := httpapi.NewServer(nil, nil, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := eatsAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		paymentTopic:  "payment.updated",
		consumerGroup: "g",
		onListen:      func(addr string) { addrCh <- addr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runEatsAPI(ctx, opts, srv, nil, fakeConsumer{})
	}()

	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/swagger.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), `"swagger"`)

	cancel()
	require.Error(t, <-errCh)
}
