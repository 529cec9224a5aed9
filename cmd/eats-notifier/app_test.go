package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/StreetEats/internal/broker/messages"
	"github.com/BearBump/StreetEats/internal/models"
	"github.com/BearBump/StreetEats/internal/realtime"
	"github.com/BearBump/StreetEats/internal/services/notifier"
)

type memRepo struct {
	mu       sync.Mutex
	nextID   uint64
	inserted []*models.Notification
}

func (r *memRepo) InsertNotification(_ context.Context, n *models.Notification) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *n
	cp.ID = r.nextID
	r.inserted = append(r.inserted, &cp)
	return &cp, nil
}

func (r *memRepo) ListNotifications(context.Context, string, int, int) ([]*models.Notification, error) {
	return nil, nil
}
func (r *memRepo) CountUnreadNotifications(context.Context, string) (int, error) { return 0, nil }
func (r *memRepo) MarkNotificationRead(context.Context, uint64) error            { return nil }
func (r *memRepo) MarkAllNotificationsRead(context.Context, string) error        { return nil }
func (r *memRepo) DeleteNotification(context.Context, uint64) error              { return nil }
func (r *memRepo) ClearNotifications(context.Context, string) error              { return nil }

type memDirectory struct{}

func (memDirectory) GetTruck(_ context.Context, truckID string) (*models.TruckRef, error) {
	return &models.TruckRef{ID: truckID, Name: "Ramen-O-Matic", OwnerID: "owner-1"}, nil
}
func (memDirectory) ListAdmins(context.Context) ([]string, error) { return nil, nil }

// oneShotConsumer отдаёт одно сообщение, затем висит до отмены контекста.
type oneShotConsumer struct {
	value []byte
}

func (c *oneShotConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	if err := handler(nil, c.value); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunNotifier_ConsumesAndServesStats(t *testing.T) {
	mr := miniredis.RunT(t)
	hub := realtime.New(mr.Addr(), 8)

	repo := &memRepo{}
	svc := notifier.NewService(repo, memDirectory{}, hub, 2)

	msg, err := json.Marshal(messages.OrderUpdated{
		OrderID:     7,
		OrderNumber: "SE-20260831-000007",
		CustomerID:  "cust-1",
		TruckID:     "truck-1",
		Status:      models.OrderStatusPending,
		TotalCents:  2373,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := notifierOpts{
		httpAddr:          "127.0.0.1:0",
		topic:             "order.updated",
		consumerGroup:     "g",
		fanoutConcurrency: 2,
		onListen:          func(addr string) { addrCh <- addr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runNotifier(ctx, opts, svc, &oneShotConsumer{value: msg})
	}()

	addr := <-addrCh

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.inserted) == 1
	}, 3*time.Second, 20*time.Millisecond)

	repo.mu.Lock()
	n := repo.inserted[0]
	repo.mu.Unlock()
	require.Equal(t, "owner-1", n.RecipientID)
	require.Equal(t, models.NotificationNewOrder, n.Type)

	resp, err := http.Get("http://" + addr + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), `"delivered":1`)

	cancel()
	require.Error(t, <-errCh)
}

func TestConsumeLoop_SkipsMalformedMessage(t *testing.T) {
	mr := miniredis.RunT(t)
	hub := realtime.New(mr.Addr(), 8)
	repo := &memRepo{}
	svc := notifier.NewService(repo, memDirectory{}, hub, 2)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- consumeLoop(ctx, notifierOpts{topic: "order.updated"}, svc, &oneShotConsumer{value: []byte("not json")})
	}()

	// Битое сообщение не роняет цикл: consumer доходит до ожидания контекста.
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.Error(t, <-done)
	require.Empty(t, repo.inserted)
}
