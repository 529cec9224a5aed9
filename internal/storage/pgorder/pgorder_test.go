package pgorder

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/StreetEats/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPGOrder_RepoFlow(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "streeteats_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/streeteats_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	order, err := st.CreateOrder(ctx, models.OrderCreateInput{
		CustomerID: "cust-1",
		TruckID:    "truck-1",
		Lines: []models.OrderLine{
			{ItemID: "taco", Name: "Taco", UnitPriceCents: 899, Quantity: 2},
			{ItemID: "soda", Name: "Soda", UnitPriceCents: 399, Quantity: 1},
		},
		SubtotalCents: 2197,
		TaxCents:      176,
		TipCents:      0,
		TotalCents:    2373,
	})
	require.NoError(t, err)
	require.NotZero(t, order.ID)
	require.NotEmpty(t, order.OrderNumber)
	require.Equal(t, models.OrderStatusPending, order.Status)
	require.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	require.Len(t, order.Lines, 2)

	// Неявный переход '' -> pending уже записан.
	trs, err := st.ListOrderTransitions(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, trs, 1)
	require.Equal(t, "", trs[0].FromStatus)
	require.Equal(t, models.OrderStatusPending, trs[0].ToStatus)

	confirmed, err := st.TransitionOrder(ctx, order.ID, models.OrderStatusPending, models.OrderStatusConfirmed, "owner-1", "")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusConfirmed, confirmed.Status)

	// Повтор того же перехода от устаревшего статуса.
	_, err = st.TransitionOrder(ctx, order.ID, models.OrderStatusPending, models.OrderStatusConfirmed, "owner-1", "")
	require.ErrorIs(t, err, models.ErrStaleStatus)

	trs, err = st.ListOrderTransitions(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, trs, 2)

	_, err = st.TransitionOrder(ctx, 999999, models.OrderStatusPending, models.OrderStatusConfirmed, "owner-1", "")
	require.ErrorIs(t, err, models.ErrOrderNotFound)

	rejected, err := st.TransitionOrder(ctx, order.ID, models.OrderStatusConfirmed, models.OrderStatusRejected, "owner-1", "out of tacos")
	require.NoError(t, err)
	require.NotNil(t, rejected.RejectedReason)
	require.Equal(t, "out of tacos", *rejected.RejectedReason)

	paid, err := st.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusRefunded)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusRefunded, paid.PaymentStatus)
	// Оплата не двигает машину статусов.
	require.Equal(t, models.OrderStatusRejected, paid.Status)

	byCustomer, err := st.ListOrdersByCustomer(ctx, "cust-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
}

func TestPGOrder_Notifications(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "streeteats_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	st, err := New("postgres://admin:admin@" + host + ":" + port.Port() + "/streeteats_test?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(st.Close)

	n := &models.Notification{
		RecipientID: "owner-1",
		Type:        models.NotificationNewOrder,
		Title:       "New order",
		Message:     "Order SE-1",
		DedupKey:    "order:1:pending",
	}
	first, err := st.InsertNotification(ctx, n)
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	// Повторная доставка того же события не создаёт дубликат.
	second, err := st.InsertNotification(ctx, n)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	list, err := st.ListNotifications(ctx, "owner-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.False(t, list[0].IsRead)

	unread, err := st.CountUnreadNotifications(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, 1, unread)

	require.NoError(t, st.MarkNotificationRead(ctx, first.ID))
	require.NoError(t, st.MarkNotificationRead(ctx, first.ID)) // идемпотентно
	require.ErrorIs(t, st.MarkNotificationRead(ctx, 999999), models.ErrNotificationNotFound)

	unread, err = st.CountUnreadNotifications(ctx, "owner-1")
	require.NoError(t, err)
	require.Zero(t, unread)

	require.NoError(t, st.ClearNotifications(ctx, "owner-1"))
	list, err = st.ListNotifications(ctx, "owner-1", 10, 0)
	require.NoError(t, err)
	require.Empty(t, list)

	// Справочник.
	require.NoError(t, st.UpsertTruck(ctx, models.TruckRef{ID: "truck-1", Name: "Taco Cat", OwnerID: "owner-1"}))
	tr, err := st.GetTruck(ctx, "truck-1")
	require.NoError(t, err)
	require.Equal(t, "owner-1", tr.OwnerID)

	rnd, err := st.RandomTruck(ctx)
	require.NoError(t, err)
	require.Equal(t, "truck-1", rnd.ID)

	require.NoError(t, st.AddAdmin(ctx, "admin-1"))
	require.NoError(t, st.AddAdmin(ctx, "admin-1"))
	admins, err := st.ListAdmins(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"admin-1"}, admins)
}
