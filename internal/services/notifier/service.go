package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/BearBump/StreetEats/internal/models"
	"github.com/BearBump/StreetEats/internal/realtime"
)

type Repository interface {
	InsertNotification(ctx context.Context, n *models.Notification) (*models.Notification, error)
	ListNotifications(ctx context.Context, recipientID string, limit, offset int) ([]*models.Notification, error)
	CountUnreadNotifications(ctx context.Context, recipientID string) (int, error)
	MarkNotificationRead(ctx context.Context, id uint64) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) error
	DeleteNotification(ctx context.Context, id uint64) error
	ClearNotifications(ctx context.Context, recipientID string) error
}

// Directory отвечает на вопрос "кому доставлять": владелец трака и список
// админов платформы живут в pgorder.
type Directory interface {
	GetTruck(ctx context.Context, truckID string) (*models.TruckRef, error)
	ListAdmins(ctx context.Context) ([]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, ev realtime.Event) error
}

// Stats - счётчики доставки за время жизни процесса, отдаются
// служебным эндпоинтом воркера.
type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

type Service struct {
	repo        Repository
	dir         Directory
	hub         Publisher
	concurrency int

	delivered atomic.Int64
	failed    atomic.Int64
}

func NewService(repo Repository, dir Directory, hub Publisher, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{repo: repo, dir: dir, hub: hub, concurrency: concurrency}
}

func (s *Service) Stats() Stats {
	return Stats{Delivered: s.delivered.Load(), Failed: s.failed.Load()}
}

// Dispatch раскладывает событие по получателям. Доставка best-effort: сбой
// записи или резолва получателя логируется и не возвращается наверх, чтобы
// не ронять вызвавшую операцию и не зацикливать consumer на одном сообщении.
func (s *Service) Dispatch(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case OrderCreated:
		owner, ok := s.truckOwner(ctx, e.TruckID)
		if !ok {
			return nil
		}
		s.deliver(ctx, &models.Notification{
			RecipientID: owner,
			Type:        models.NotificationNewOrder,
			Title:       "Новый заказ",
			Message:     fmt.Sprintf("Заказ %s на %s ждёт подтверждения", e.OrderNumber, formatCents(e.TotalCents)),
			DataJSON:    orderData(e.OrderID),
			DedupKey:    fmt.Sprintf("order:%d:created", e.OrderID),
		})

	case OrderStatusChanged:
		recipient := e.CustomerID
		// Отмену инициирует сам покупатель, уведомляем владельца трака.
		if e.Status == models.OrderStatusCancelled {
			owner, ok := s.truckOwner(ctx, e.TruckID)
			if !ok {
				return nil
			}
			recipient = owner
		}
		title, message := statusText(e)
		s.deliver(ctx, &models.Notification{
			RecipientID: recipient,
			Type:        models.NotificationOrderStatusUpdate,
			Title:       title,
			Message:     message,
			DataJSON:    orderData(e.OrderID),
			DedupKey:    fmt.Sprintf("order:%d:%s", e.OrderID, e.Status),
		})

	case ReviewSubmitted:
		owner, ok := s.truckOwner(ctx, e.TruckID)
		if !ok {
			return nil
		}
		s.deliver(ctx, &models.Notification{
			RecipientID: owner,
			Type:        models.NotificationNewReview,
			Title:       "Новый отзыв",
			Message:     fmt.Sprintf("%s оставил отзыв с оценкой %d", e.ReviewerName, e.Rating),
			DedupKey:    fmt.Sprintf("review:%s:%s", e.TruckID, e.ReviewerName),
		})

	case UserSignedUp:
		s.deliverToAdmins(ctx, func(admin string) *models.Notification {
			return &models.Notification{
				RecipientID: admin,
				Type:        models.NotificationNewUserSignup,
				Title:       "Новый пользователь",
				Message:     fmt.Sprintf("Зарегистрировался %s", e.Name),
				DedupKey:    fmt.Sprintf("user:%s:signup", e.UserID),
			}
		})

	case TruckRegistered:
		s.deliverToAdmins(ctx, func(admin string) *models.Notification {
			return &models.Notification{
				RecipientID: admin,
				Type:        models.NotificationNewTruck,
				Title:       "Новый фудтрак",
				Message:     fmt.Sprintf("На платформу добавлен трак %q", e.Name),
				DedupKey:    fmt.Sprintf("truck:%s:registered", e.TruckID),
			}
		})

	default:
		return errors.Errorf("notifier: unknown event %T", ev)
	}
	return nil
}

func (s *Service) truckOwner(ctx context.Context, truckID string) (string, bool) {
	truck, err := s.dir.GetTruck(ctx, truckID)
	if err != nil {
		s.failed.Add(1)
		slog.Error("resolve truck owner", "truckId", truckID, "error", err)
		return "", false
	}
	return truck.OwnerID, true
}

// deliver пишет уведомление и будит inbox-канал получателя. Оба шага
// best-effort.
func (s *Service) deliver(ctx context.Context, n *models.Notification) {
	saved, err := s.repo.InsertNotification(ctx, n)
	if err != nil {
		s.failed.Add(1)
		slog.Error("insert notification", "recipientId", n.RecipientID, "type", n.Type, "error", err)
		return
	}
	s.delivered.Add(1)

	payload, err := json.Marshal(saved)
	if err != nil {
		slog.Error("marshal notification event", "id", saved.ID, "error", err)
		return
	}
	ev := realtime.Event{Kind: realtime.KindNotification, Payload: payload}
	if err := s.hub.Publish(ctx, realtime.InboxKey(saved.RecipientID), ev); err != nil {
		slog.Error("publish inbox event", "recipientId", saved.RecipientID, "error", err)
	}
}

// deliverToAdmins раскидывает по всем админам с ограниченным числом
// параллельных записей.
func (s *Service) deliverToAdmins(ctx context.Context, build func(admin string) *models.Notification) {
	admins, err := s.dir.ListAdmins(ctx)
	if err != nil {
		s.failed.Add(1)
		slog.Error("list admins", "error", err)
		return
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, admin := range admins {
		wg.Add(1)
		sem <- struct{}{}
		go func(admin string) {
			defer wg.Done()
			defer func() { <-sem }()
			s.deliver(ctx, build(admin))
		}(admin)
	}
	wg.Wait()
}

func (s *Service) List(ctx context.Context, recipientID string, limit, offset int) ([]*models.Notification, error) {
	return s.repo.ListNotifications(ctx, recipientID, limit, offset)
}

func (s *Service) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return s.repo.CountUnreadNotifications(ctx, recipientID)
}

func (s *Service) MarkRead(ctx context.Context, id uint64) error {
	return s.repo.MarkNotificationRead(ctx, id)
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID string) error {
	return s.repo.MarkAllNotificationsRead(ctx, recipientID)
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	return s.repo.DeleteNotification(ctx, id)
}

func (s *Service) ClearAll(ctx context.Context, recipientID string) error {
	return s.repo.ClearNotifications(ctx, recipientID)
}

func statusText(e OrderStatusChanged) (title, message string) {
	switch e.Status {
	case models.OrderStatusConfirmed:
		return "Заказ подтверждён", fmt.Sprintf("Трак принял заказ %s и скоро начнёт готовить", e.OrderNumber)
	case models.OrderStatusPreparing:
		return "Заказ готовится", fmt.Sprintf("Заказ %s уже на кухне", e.OrderNumber)
	case models.OrderStatusReady:
		return "Заказ готов", fmt.Sprintf("Заказ %s можно забирать", e.OrderNumber)
	case models.OrderStatusCompleted:
		return "Заказ выдан", fmt.Sprintf("Заказ %s завершён, приятного аппетита", e.OrderNumber)
	case models.OrderStatusCancelled:
		return "Заказ отменён", fmt.Sprintf("Покупатель отменил заказ %s", e.OrderNumber)
	case models.OrderStatusRejected:
		msg := fmt.Sprintf("Трак отклонил заказ %s", e.OrderNumber)
		if e.Note != "" {
			msg += ": " + e.Note
		}
		return "Заказ отклонён", msg
	}
	return "Статус заказа изменён", fmt.Sprintf("Заказ %s: %s", e.OrderNumber, e.Status)
}

func orderData(orderID uint64) *string {
	d := fmt.Sprintf(`{"orderId":%d}`, orderID)
	return &d
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d $", cents/100, cents%100)
}
